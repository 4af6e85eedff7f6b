package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/zoho-client/internal/config"
	"github.com/Sternrassler/zoho-client/pkg/logging"
	"github.com/Sternrassler/zoho-client/pkg/zoho"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

// app is the state shared by the subcommands of one invocation.
type app struct {
	opts    config.LoadOptions
	profile *config.Profile
	output  string
	logger  zerolog.Logger

	redis *redis.Client
	suite *zoho.Suite
}

func newRootCommand() *cobra.Command {
	a := &app{}

	var (
		dataCenter string
		logLevel   string
	)

	root := &cobra.Command{
		Use:     "zoho",
		Short:   "Zoho CRM, Books, People and Desk API client",
		Version: version,
		Long: `A command-line client for the Zoho CRM, Books, People and Desk APIs.

Credentials are read from ~/.zoho/config.yml, ZOHO_* environment variables
or a .env file. Access tokens are refreshed automatically and shared through
Redis when redis.addr is configured.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.opts.Overrides = map[string]any{}
			if cmd.Flags().Changed("data-center") {
				a.opts.Overrides["data_center"] = dataCenter
			}
			if cmd.Flags().Changed("log-level") {
				a.opts.Overrides["log.level"] = logLevel
			}
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.opts.ConfigFile, "config", "c", "", "config file (default is $HOME/.zoho/config.yml)")
	root.PersistentFlags().StringVar(&a.opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&dataCenter, "data-center", "", "data center (com, eu, in, com.au, jp, ca, com.cn, sa)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "output format (table, json, yaml)")

	root.AddCommand(newTokenCommand(a))
	root.AddCommand(newGetCommand(a))
	root.AddCommand(newListCommand(a))
	root.AddCommand(newServeCommand(a))

	return root
}

// load reads the profile and configures logging.
func (a *app) load() error {
	p, err := config.Load(a.opts)
	if err != nil {
		return err
	}
	a.profile = p
	logging.Setup(p.LoggingConfig())
	a.logger = logging.NewLogger("zoho-cli")
	return nil
}

// connect builds the product clients on first use.
func (a *app) connect() (*zoho.Suite, error) {
	if a.suite != nil {
		return a.suite, nil
	}
	if err := a.profile.Validate(); err != nil {
		return nil, err
	}

	a.redis = a.profile.RedisClient()
	suite, err := zoho.NewSuite(a.profile.SuiteConfig(a.redis))
	if err != nil {
		return nil, err
	}
	a.suite = suite
	return suite, nil
}

// productClient resolves a product argument.
func (a *app) productClient(name string) (*zoho.Client, error) {
	product, err := zoho.ParseProduct(name)
	if err != nil {
		return nil, err
	}
	suite, err := a.connect()
	if err != nil {
		return nil, err
	}
	return suite.Client(product), nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
