// Package version holds the CLI's build identity.
package version

import "github.com/fatih/color"

// These variables can be overridden at build time via -ldflags.
var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the verifier CLI.
	Version = majorColor.Sprint("0") + "." + minorColor.Sprint("1") + "." + patchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)
