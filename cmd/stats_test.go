package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/org-stats/internal/config"
)

func newTestStatsCommand(t *testing.T, args ...string) *cobra.Command {
	c := &cobra.Command{Use: "stats"}
	addStatsFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func envWith(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestConfigFromFlags_Defaults(t *testing.T) {
	c := newTestStatsCommand(t)

	cfg, err := configFromFlags(c, envWith(map[string]string{"GITHUB_TOKEN": "secret"}))

	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, config.DefaultOrg, cfg.Org)
	assert.Equal(t, "2024-01-01..2024-01-31", cfg.DateRange())
	assert.Equal(t, config.DefaultSearchInterval, cfg.SearchInterval)
	assert.Equal(t, config.DefaultSearchBurst, cfg.SearchBurst)
	assert.Equal(t, config.DefaultMaxRestarts, cfg.MaxRestarts)
	assert.Zero(t, cfg.Concurrency)
	assert.False(t, cfg.UseGraphQL)
}

func TestConfigFromFlags(t *testing.T) {
	testCases := []struct {
		name           string
		args           []string
		env            map[string]string
		expectError    bool
		expectedErrMsg string
		check          func(t *testing.T, cfg config.Config)
	}{
		{
			name: "flags override defaults",
			args: []string{"--org", "acme", "--since", "2024-03-01", "--until", "2024-03-15",
				"--search-interval", "0s", "--concurrency", "4", "--max-restarts", "0", "--graphql", "--summary"},
			env: map[string]string{"GITHUB_TOKEN": "secret"},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "acme", cfg.Org)
				assert.Equal(t, "2024-03-01..2024-03-15", cfg.DateRange())
				assert.Equal(t, time.Duration(0), cfg.SearchInterval)
				assert.Equal(t, 4, cfg.Concurrency)
				assert.Equal(t, 0, cfg.MaxRestarts)
				assert.True(t, cfg.UseGraphQL)
				assert.True(t, cfg.Summary)
			},
		},
		{
			name:           "missing token",
			env:            map[string]string{},
			expectError:    true,
			expectedErrMsg: "GITHUB_TOKEN environment variable is not set",
		},
		{
			name:           "bad date",
			args:           []string{"--since", "2024/01/01"},
			env:            map[string]string{"GITHUB_TOKEN": "secret"},
			expectError:    true,
			expectedErrMsg: "--since",
		},
		{
			name:           "reversed window",
			args:           []string{"--since", "2024-02-01", "--until", "2024-01-01"},
			env:            map[string]string{"GITHUB_TOKEN": "secret"},
			expectError:    true,
			expectedErrMsg: "until date is before since date",
		},
		{
			name:        "empty org",
			args:        []string{"--org", ""},
			env:         map[string]string{"GITHUB_TOKEN": "secret"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestStatsCommand(t, tc.args...)

			cfg, err := configFromFlags(c, envWith(tc.env))

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}
