// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/org-stats/internal/config"
	"github.com/naka-gawa/org-stats/internal/gateway"
	"github.com/naka-gawa/org-stats/internal/logger"
	"github.com/naka-gawa/org-stats/internal/render"
	"github.com/naka-gawa/org-stats/internal/usecase"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregates member contributions of a GitHub organization into a table",
	Long: `Lists the members of the organization and, for each one, counts PR reviews,
PR comments, commits, opened PRs and merged PRs within the date range using
the search API. The result is printed as a table sorted by reviews given.

The access token is read from the GITHUB_TOKEN environment variable, which
may also be set in a .env file in the working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// From here on errors are reported through the logger.
		cmd.SilenceErrors = true

		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := logger.New(verbose)
		if err != nil {
			return errors.Wrap(err, "failed to create logger")
		}
		defer func() { _ = log.Sync() }()

		if err := loadDotEnv(dotEnvFile); err != nil {
			log.Error("Failed to load environment file", zap.Error(err))
			return err
		}

		cfg, err := configFromFlags(cmd, os.Getenv)
		if err != nil {
			log.Error("Invalid configuration", zap.Error(err))
			return err
		}

		if err := runStats(cmd.Context(), cfg, cmd.OutOrStdout(), log); err != nil {
			log.Error("Failed to aggregate stats", zap.Error(err))
			return err
		}
		return nil
	},
}

// dotEnvFile is loaded before the environment is read, if it exists.
// Variables already set in the process environment take precedence.
const dotEnvFile = ".env"

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to load %s", path)
	}
	return nil
}

// configFromFlags builds the run configuration once; it is not changed afterwards.
func configFromFlags(cmd *cobra.Command, getenv func(string) string) (config.Config, error) {
	flags := cmd.Flags()
	org, _ := flags.GetString("org")
	sinceStr, _ := flags.GetString("since")
	untilStr, _ := flags.GetString("until")
	interval, _ := flags.GetDuration("search-interval")
	burst, _ := flags.GetInt("search-burst")
	concurrency, _ := flags.GetInt("concurrency")
	maxRestarts, _ := flags.GetInt("max-restarts")
	useGraphQL, _ := flags.GetBool("graphql")
	summary, _ := flags.GetBool("summary")

	token := getenv(config.TokenEnv)
	if token == "" {
		return config.Config{}, errors.Errorf("%s environment variable is not set", config.TokenEnv)
	}
	since, err := config.ParseDate(sinceStr)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "--since")
	}
	until, err := config.ParseDate(untilStr)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "--until")
	}

	cfg := config.Config{
		Token:          token,
		Org:            org,
		Since:          since,
		Until:          until,
		SearchInterval: interval,
		SearchBurst:    burst,
		Concurrency:    concurrency,
		MaxRestarts:    maxRestarts,
		UseGraphQL:     useGraphQL,
		Summary:        summary,
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runStats wires the gateway, gate and aggregator, then renders the result.
// Nothing is written to out unless the whole run succeeds.
func runStats(ctx context.Context, cfg config.Config, out io.Writer, log *zap.Logger, opts ...gateway.Option) error {
	githubGateway, err := gateway.NewGitHubGateway(cfg.Token, cfg.UseGraphQL, log, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create GitHub gateway")
	}
	gate := usecase.NewSearchGate(cfg.SearchInterval, cfg.SearchBurst)
	aggregator := usecase.NewAggregator(githubGateway, gate, cfg, log)

	results, err := aggregator.Run(ctx)
	if err != nil {
		return err
	}

	if err := render.Table(out, results); err != nil {
		return err
	}
	if cfg.Summary {
		return render.Summary(out, results)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addStatsFlags(statsCmd)
}

func addStatsFlags(c *cobra.Command) {
	c.Flags().StringP("org", "o", config.DefaultOrg, "Target GitHub organization name")
	c.Flags().String("since", config.DefaultSince, "Start date of the window (YYYY-MM-DD)")
	c.Flags().String("until", config.DefaultUntil, "End date of the window (YYYY-MM-DD)")
	c.Flags().Duration("search-interval", config.DefaultSearchInterval, "Minimum spacing between search queries (0 disables throttling)")
	c.Flags().Int("search-burst", config.DefaultSearchBurst, "Search queries allowed back to back before spacing applies")
	c.Flags().Int("concurrency", 0, "Maximum members collected at once (0 = unlimited)")
	c.Flags().Int("max-restarts", config.DefaultMaxRestarts, "Full restarts allowed after a rate limit (403) response")
	c.Flags().Bool("graphql", false, "Count issue searches through the GraphQL API")
	c.Flags().Bool("summary", false, "Print total, mean and median per column below the table")
}
