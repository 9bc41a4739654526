package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/bot"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type options struct {
	configFile string
	envFile    string
	logDir     string
	debug      bool
	quiet      bool

	pairs      []string
	investment float64
	demo       bool
	testnet    bool
	exitPolicy string
	resume     bool
	immediate  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "confluence-bot",
		Short: "Confluence signal spot trading bot",
		Long: `confluence-bot waits for six indicators to agree, buys with a fixed
stop loss and take profit, and supervises every position until it exits.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file; bare names are read from configs/ (e.g. confluence)")
	flags.StringVar(&opts.envFile, "env", ".env", "Environment file with API credentials")
	flags.StringVar(&opts.logDir, "log-dir", "logs", "Directory for session logs")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Write session logs to files only")
	flags.StringSliceVarP(&opts.pairs, "pair", "p", nil, "Trading pair(s), overriding the config (e.g. BTCUSDT)")
	flags.Float64VarP(&opts.investment, "investment", "i", 0, "Quote amount to invest per entry")
	flags.BoolVar(&opts.demo, "demo", false, "Use the venue's demo environment")
	flags.BoolVar(&opts.testnet, "testnet", false, "Use the venue's testnet")

	root.AddCommand(runCmd(opts, bot.ModeLive, "Trade with real orders on the configured venue"))
	root.AddCommand(runCmd(opts, bot.ModePaper, "Simulate fills against live venue prices"))
	root.AddCommand(statusCmd(opts))
	root.AddCommand(configCmd(opts))
	root.AddCommand(versionCmd())
	return root
}

func runCmd(opts *options, mode bot.Mode, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// paper trading trails its stop unless told otherwise
			if mode == bot.ModePaper && !cmd.Flags().Changed("exit") {
				opts.exitPolicy = "trailing"
			}
			return run(cmd, opts, mode)
		},
	}
	cmd.Flags().StringVar(&opts.exitPolicy, "exit", "", "Exit policy: fixed or trailing")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume monitoring positions left in the position book")
	cmd.Flags().BoolVar(&opts.immediate, "immediate", false, "Enter at once without waiting for a buy signal")
	return cmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Authenticate and print balance and market constraints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := bot.New(ctx, cfg, botOptions(cmd, opts, bot.ModeLive))
			if err != nil {
				return err
			}
			defer b.Close()

			id, balance, err := b.Authenticate(ctx)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			b.PrintStartupInfo(id, balance)
			return b.PrintStatus(ctx)
		},
	}
}

func configCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func run(cmd *cobra.Command, opts *options, mode bot.Mode) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg, botOptions(cmd, opts, mode))
	if err != nil {
		return err
	}
	defer b.Close()

	id, balance, err := b.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	b.PrintStartupInfo(id, balance)
	b.PrintConfiguration()

	fmt.Fprintf(cmd.OutOrStdout(), "🔄 Bot is running... (trading activity logged to %s)\n\n", opts.logDir)
	results, err := b.Run(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "\n🛑 Shutdown signal received...")
	}
	if results != nil {
		b.PrintResults(results)
	}
	return err
}

func botOptions(cmd *cobra.Command, opts *options, mode bot.Mode) bot.Options {
	return bot.Options{
		Mode:      mode,
		Debug:     opts.debug,
		Resume:    opts.resume,
		Immediate: opts.immediate,
		LogDir:    opts.logDir,
		Quiet:     opts.quiet,
		Out:       cmd.OutOrStdout(),
	}
}

// loadConfig reads the env file, the config file and the command line, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command, opts *options) (*config.BotConfig, error) {
	if err := loadEnvFile(opts.envFile); err != nil && cmd.Flags().Changed("env") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load env file (%v), using the environment\n", err)
	}

	var (
		cfg *config.BotConfig
		err error
	)
	if opts.configFile == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.LoadBotConfig(opts.configFile)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Apply(config.Overrides{
		Pairs:      opts.pairs,
		Investment: opts.investment,
		Demo:       opts.demo,
		Testnet:    opts.testnet,
		ExitPolicy: opts.exitPolicy,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err != nil {
		return fmt.Errorf("env file %s not found", envFile)
	}
	return godotenv.Load(envFile)
}

