package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/app"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

var sdkConfigOnce sync.Once

// initSDKConfig sets the bech32 prefixes. The SDK config can only be sealed once.
func initSDKConfig() {
	sdkConfigOnce.Do(app.SetConfig)
}

// NewRootCmd creates the greenmeshd root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "greenmeshd",
		Short: "GreenMesh compute marketplace node",
		Long: `GreenMesh matches compute jobs to registered worker nodes, preferring
certified green providers, and settles payment once results are in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			initSDKConfig()
			return nil
		},
	}

	rootCmd.PersistentFlags().String(flagHome, app.DefaultNodeHome, "directory for config and data")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level (trace|debug|info|warn|error); overrides log.level")
	rootCmd.PersistentFlags().String(flagLogFormat, "", "log format (json|plain); overrides log.format")

	rootCmd.AddCommand(
		InitCmd(),
		StartCmd(),
		ExportCmd(),
		ValidateGenesisCmd(),
		KeysCmd(),
		TokenCmd(),
		AttestCmd(),
		ProviderCmd(),
	)
	return rootCmd
}

// nodeContext is what every command reads before doing work.
type nodeContext struct {
	home   string
	cfg    Config
	logger log.Logger
}

func loadNodeContext(cmd *cobra.Command) (nodeContext, error) {
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil {
		return nodeContext{}, err
	}
	cfg, err := LoadConfig(home)
	if err != nil {
		return nodeContext{}, err
	}
	if level, _ := cmd.Flags().GetString(flagLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString(flagLogFormat); format != "" {
		cfg.Log.Format = format
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nodeContext{}, err
	}
	return nodeContext{home: home, cfg: cfg, logger: logger}, nil
}

// newLogger builds the root logger. Levels follow zerolog naming.
func newLogger(cfg LogConfig, w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if w == nil {
		w = os.Stderr
	}
	opts := []log.Option{log.LevelOption(level)}
	switch cfg.Format {
	case "json", "":
		opts = append(opts, log.OutputJSONOption())
	case "plain":
		opts = append(opts, log.ColorOption(false))
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return log.NewLogger(w, opts...), nil
}
