// Package cmd provides NetPulse's command-line interface: a single
// long-running root command (probe, aggregate, and stream telemetry)
// plus a version subcommand, configured through layered flag/env/file
// sources the same way the teacher's CLI does.
//
// Configuration System:
//
//	Configuration loads through multiple sources with clear precedence:
//	1. Command-line flags (--config, --data-dir, etc.) - highest priority
//	2. NETPULSE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (NETPULSE_PROBE_TYPE, etc.)
//	4. Configuration file (.netpulse.yml) - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is NetPulse's entry point: it loads configuration, starts the
// scheduler and the HTTP/WebSocket server, and blocks until a shutdown
// signal arrives.
var rootCmd = &cobra.Command{
	Use:   "netpulse",
	Short: "A long-running network-quality monitor",
	Long: `NetPulse continuously probes a small set of network targets over TCP
or ICMP, aggregates round-trip-time samples into per-target quality
metrics, detects sustained bad conditions, and streams live telemetry
over a local HTTP + WebSocket endpoint.

Quick Start:
  netpulse                       Start the monitor with .netpulse.yml
  netpulse --probe-type icmp     Probe with ICMP echoes instead of TCP
  netpulse --config path.yml     Use an explicit configuration file
  netpulse version               Show build information`,
	RunE:         runServe,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .netpulse.yml, can also use NETPULSE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("probe-type", "tcp", "probe transport (tcp, icmp)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the event journal (default $HOME/.netpulse)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("http-port", 0, "HTTP/WebSocket listen port")

	viper.BindPFlag("probe_type", rootCmd.PersistentFlags().Lookup("probe-type"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("http_port", rootCmd.PersistentFlags().Lookup("http-port"))
}

// initConfig resolves which configuration file viper reads, following
// the same flag > env > default precedence as the rest of the CLI.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("NETPULSE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".netpulse")
	}

	viper.SetEnvPrefix("NETPULSE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
