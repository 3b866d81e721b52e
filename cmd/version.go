package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/netpulse/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and version information",
	Long: `Print the netpulse binary's version, commit, and build metadata.

Examples:
  netpulse version               # human-readable summary
  netpulse version --short       # one-line summary
  netpulse version --format json # machine-readable`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print a single-line version string")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Current()

	switch versionFormat {
	case "json":
		data, err := info.JSON()
		if err != nil {
			return fmt.Errorf("version: marshal: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	case "text":
		if versionShort {
			fmt.Println(info.Short())
			return nil
		}
		fmt.Println(info.String())
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
