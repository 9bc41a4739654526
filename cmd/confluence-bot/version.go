package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version   = "0.1.0"
	commit    = "dev"
	buildDate = "unknown"
)

// versionInfo contains version and build information
type versionInfo struct {
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	Architecture string
}

func getVersionInfo() versionInfo {
	return versionInfo{
		Version:      version,
		Commit:       commit,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := getVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "confluence-bot v%s\n", info.Version)
			fmt.Fprintf(out, "Build: %s (%s)\n", info.Commit, info.BuildDate)
			fmt.Fprintf(out, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
		},
	}
}
