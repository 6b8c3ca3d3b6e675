package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ferro/internal/diagfmt"
	"ferro/internal/driver"
	"ferro/internal/observ"
	"ferro/internal/project"
	"ferro/internal/source"
	"ferro/internal/tir"
	"ferro/internal/trace"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [module.ftm]",
	Short: "Verify ownership and lifetimes of a typed module",
	Long: `Check runs the ownership, borrowing and lifetime analysis over every
function of a typed module. Without an argument the module is taken from the
[input] section of the nearest ferro.toml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "", "output format (pretty|json)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	checkCmd.Flags().Bool("with-notes", true, "include diagnostic notes in output")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().Bool("disk-cache", false, "reuse verification results across runs")
	checkCmd.Flags().String("trace", "off", "trace level (off|phase|func|debug)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	diskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	traceValue, err := cmd.Flags().GetString("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	colorMode, err := diagfmt.ParseColorMode(colorValue)
	if err != nil {
		return err
	}

	// The manifest fills in whatever the command line left unset.
	modulePath := ""
	if len(args) == 1 {
		modulePath = args[0]
	}
	manifest, found, err := project.Discover(".")
	if err != nil {
		return err
	}
	if found {
		if modulePath == "" {
			modulePath = manifest.ModulePath()
		}
		if maxDiagnostics <= 0 {
			maxDiagnostics = manifest.Config.Check.MaxDiagnostics
		}
		if jobs <= 0 {
			jobs = manifest.Config.Check.Jobs
		}
		if format == "" {
			format = manifest.Config.Check.Format
		}
	}
	if modulePath == "" {
		return fmt.Errorf("no module given and no %s found", project.ManifestName)
	}
	if format == "" {
		format = "pretty"
	}
	switch format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	traceLevel, err := trace.ParseLevel(traceValue)
	if err != nil {
		return err
	}
	var tracer trace.Tracer = trace.Nop
	if traceLevel > trace.LevelOff {
		tracer = trace.NewStreamTracer(os.Stderr, traceLevel)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)

	timer := observ.NewTimer()

	loadPhase := timer.Begin("load")
	mod, err := tir.Load(modulePath)
	if err != nil {
		return err
	}
	timer.End(loadPhase, mod.Name)

	fs := source.NewFileSet()
	mod.RegisterSources(fs)

	opts := driver.Options{
		MaxDiagnostics: maxDiagnostics,
		Jobs:           jobs,
		Timer:          timer,
	}
	if diskCache {
		cache, err := driver.OpenResultCache("ferro")
		if err != nil {
			return err
		}
		opts.Cache = cache
	}

	result, err := driver.CheckModule(ctx, mod, opts)
	if err != nil {
		return err
	}
	_ = tracer.Close()

	colored := false
	switch colorMode {
	case diagfmt.ColorOn:
		colored = true
	case diagfmt.ColorAuto:
		colored = isTerminal(os.Stdout)
	}
	color.NoColor = !colored

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	switch format {
	case "json":
		err = diagfmt.JSON(os.Stdout, result.Bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			Max:              maxDiagnostics,
			IncludeNotes:     withNotes,
		})
		if err != nil {
			return err
		}
	default:
		diagfmt.Pretty(os.Stdout, result.Bag, fs, diagfmt.PrettyOpts{
			Color:     colored,
			PathMode:  pathMode,
			ShowNotes: withNotes,
		})
		if !quiet && result.Bag.Len() == 0 {
			fmt.Fprintf(os.Stdout, "%s: %d function(s) verified\n", mod.Name, len(result.Results))
		}
	}

	if showTimings {
		fmt.Fprint(os.Stderr, timer.Summary())
	}

	if result.HasErrors() {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return errExit
	}
	return nil
}

// errExit makes Execute return non-zero without printing anything; the
// diagnostics already went to stdout.
var errExit = fmt.Errorf("verification failed")
