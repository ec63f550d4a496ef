package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo holds version information injected at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("eduloan %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s",
		b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

func currentBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// NewVersionCmd prints build information. It skips config loading so it
// works on a bare host.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentBuildInfo()
			if f := cmd.Flag("output"); f != nil && f.Value.String() == "json" {
				return printJSON(cmd, info)
			}
			return printText(cmd, info)
		},
	}
}

//Personal.AI order the ending
