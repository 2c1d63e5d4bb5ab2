package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxcal/internal/config"
	"github.com/teemow/inboxcal/internal/logging"
)

// rootCmd represents the base command for the inboxcal application
var rootCmd = &cobra.Command{
	Use:   "inboxcal",
	Short: "Keeps a CalDAV calendar reachable from an AI assistant",
	Long: `inboxcal talks to a CalDAV calendar and turns scheduling emails into
calendar events.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (serve)
  - A small CLI for checking the agenda and testing intent detection`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logFormat  string
	caldavURL  string
	username   string
	timezone   string
	debug      bool
}

var globals globalOptions

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxcal version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.configPath, "config", "", "Path to the TOML config file (default: $XDG_CONFIG_HOME/inboxcal/config.toml)")
	pf.StringVar(&globals.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&globals.caldavURL, "caldav-url", "", "CalDAV server URL")
	pf.StringVar(&globals.username, "username", "", "CalDAV username")
	pf.StringVar(&globals.timezone, "timezone", "", "IANA timezone for floating and all-day times")
	pf.BoolVar(&globals.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAgendaCmd())
	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

// loadConfig resolves the configuration with flags taking precedence over
// the environment and the config file.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	var overrides config.Overrides
	if flagValueChanged(cmd, "config") {
		overrides.ConfigPath = globals.configPath
	}
	if flagValueChanged(cmd, "log-format") {
		overrides.LogFormat = globals.logFormat
	}
	if flagValueChanged(cmd, "caldav-url") {
		overrides.CalDAVURL = globals.caldavURL
	}
	if flagValueChanged(cmd, "username") {
		overrides.Username = globals.username
	}
	if flagValueChanged(cmd, "timezone") {
		overrides.Timezone = globals.timezone
	}
	return config.Load(ctx, config.LoadOptions{Overrides: overrides})
}

// newLogger writes to stderr so stdout stays free for the MCP protocol.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(os.Stderr, cfg.LogFormat, globals.debug)
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}
