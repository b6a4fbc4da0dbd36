// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/config"
	"github.com/Thermoquad/potterm/pkg/terminal"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	configPath  string
	newlineFlag string
	hexMode     bool
	recordPath  string

	// Logging flags
	logLevel string
	logFile  string
)

var (
	// appConfig is the config file merged with flags, resolved before any
	// subcommand runs
	appConfig config.Config

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "potterm",
	Short: "Line terminal for potentiometer controller boards",
	Long: `Potterm - A line-oriented terminal for controller boards that report
four numeric fields as n0.val= .. n3.val= tags.

Received text is shown with control bytes in caret notation (^M, ^[),
CRLF pairs are rejoined across reads, and every complete set of the four
fields is extracted as a record. Lines can be sent as text or as hex.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the POTTERM_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings are read from the config file (default: ` + "`" + `$XDG_CONFIG_HOME/potterm/config.toml` + "`" + `)
and overridden by flags.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&newlineFlag, "newline", "crlf", "Line terminator for sends and CRLF handling: crlf, lf or none")
	rootCmd.PersistentFlags().BoolVar(&hexMode, "hex", false, "Send input as hex bytes")
	rootCmd.PersistentFlags().StringVar(&recordPath, "record", "", "Capture raw traffic to a file for replay")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off (env "+envLogLevel+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings resolves appConfig from the config file and the flags that
// were set explicitly, then configures logging
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("newline") {
		n, err := terminal.ParseNewlineMode(newlineFlag)
		if err != nil {
			return err
		}
		cfg.Newline = n
	}
	if flags.Changed("hex") {
		cfg.Mode = terminal.ModeText
		if hexMode {
			cfg.Mode = terminal.ModeHex
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w (check --config and connection flags)", err)
	}
	appConfig = cfg

	logger, err = setupLogging(logLevel, logFile, cmd.Name() == "terminal")
	return err
}

// sessionConfig returns the core settings for a new session
func sessionConfig() terminal.Config {
	cfg := appConfig.TerminalConfig()
	cfg.Logger = &logger
	return cfg
}
