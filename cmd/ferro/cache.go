package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ferro/internal/driver"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the on-disk verification cache",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := driver.OpenResultCache("ferro")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop all cached verification results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := driver.OpenResultCache("ferro")
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return err
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleaned")
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheDirCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}
