package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"briefboard/internal/app"
	"briefboard/internal/config"
	"briefboard/internal/httpx"
	"briefboard/internal/logging"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
)

type cli struct {
	out io.Writer
	v   *viper.Viper
	app *app.App

	// appOptions adjust the wiring; tests replace the transports here.
	appOptions []app.Option
}

func newRootCmd(c *cli) *cobra.Command {
	c.v = viper.New()

	root := &cobra.Command{
		Use:           "fetch",
		Short:         "Query news and market data providers.",
		Long:          `fetch runs one provider request through the shared cache and prints the mapped result.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file (yaml, json or toml)")
	flags.StringP("output", "o", outputTable, "Output format: table or json")
	flags.Bool("no-cache", false, "Bypass the response cache")
	flags.String("log-level", "", "Override the configured log level")
	for _, name := range []string{"config", "output", "no-cache", "log-level"} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}
	c.v.SetEnvPrefix(config.EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = c.v.BindEnv("config")

	root.AddCommand(
		newHeadlinesCmd(c),
		newSearchCmd(c),
		newSourcesCmd(c),
		newQuoteCmd(c),
		newPriceCmd(c),
		newSeriesCmd(c),
		newMarketCmd(c),
		newHomeCmd(c),
		newLikesCmd(c),
		newCacheCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	switch c.output() {
	case outputTable, outputJSON:
	default:
		return fmt.Errorf("unknown output format %q", c.v.GetString("output"))
	}

	cfg, err := config.Load(c.v.GetString("config"))
	if err != nil {
		return err
	}
	if lvl := c.v.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	a, err := app.New(cmd.Context(), cfg, logging.New(cfg.Log.Level), c.appOptions...)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) output() string {
	return strings.ToLower(c.v.GetString("output"))
}

// fetchOptions returns the per-call options for provider requests.
func (c *cli) fetchOptions() []httpx.FetchOption {
	if c.v.GetBool("no-cache") {
		return []httpx.FetchOption{httpx.WithoutCache()}
	}
	return c.app.FetchOptions()
}

var errNoCache = errors.New("cache is disabled in the configuration")
