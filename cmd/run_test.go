package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naka-gawa/org-stats/internal/config"
	"github.com/naka-gawa/org-stats/internal/gateway"
)

func runConfig() config.Config {
	return config.Config{
		Token:       "secret",
		Org:         "acme",
		Since:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		SearchBurst: 1,
		MaxRestarts: 1,
	}
}

// fakeGitHub serves the endpoints a run touches. Paths listed in failures
// answer with the given status instead.
func fakeGitHub(t *testing.T, failures map[string]int) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4000")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		if status, ok := failures[r.URL.Path]; ok {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"message": "failure"}`)
			return
		}
		switch {
		case r.URL.Path == "/rate_limit":
			fmt.Fprint(w, `{"resources":{}}`)
		case r.URL.Path == "/orgs/acme/members":
			fmt.Fprint(w, `[{"login":"alice"},{"login":"bob"}]`)
		case r.URL.Path == "/search/commits":
			fmt.Fprint(w, `{"total_count": 5, "items": []}`)
		case r.URL.Path == "/search/issues" && strings.Contains(r.URL.Query().Get("q"), "reviewed-by:bob"):
			fmt.Fprint(w, `{"total_count": 9, "items": []}`)
		case r.URL.Path == "/search/issues":
			fmt.Fprint(w, `{"total_count": 1, "items": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunStats_RendersTable(t *testing.T) {
	server := fakeGitHub(t, nil)
	var out bytes.Buffer

	err := runStats(context.Background(), runConfig(), &out, zap.NewNop(), gateway.WithBaseURL(server.URL))

	require.NoError(t, err)
	lines := strings.Split(out.String(), "\n")
	var rows []string
	for _, l := range lines {
		if strings.HasPrefix(l, "│") {
			rows = append(rows, l)
		}
	}
	require.Len(t, rows, 3, out.String())
	assert.Contains(t, rows[1], "bob")
	assert.Contains(t, rows[2], "alice")
}

func TestRunStats_FailureWritesNothing(t *testing.T) {
	testCases := []struct {
		name     string
		failures map[string]int
	}{
		{name: "member listing fails", failures: map[string]int{"/orgs/acme/members": http.StatusInternalServerError}},
		{name: "commit search fails", failures: map[string]int{"/search/commits": http.StatusUnprocessableEntity}},
		{name: "bad credentials", failures: map[string]int{"/rate_limit": http.StatusUnauthorized}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := fakeGitHub(t, tc.failures)
			var out bytes.Buffer

			err := runStats(context.Background(), runConfig(), &out, zap.NewNop(), gateway.WithBaseURL(server.URL))

			assert.Error(t, err)
			assert.Empty(t, out.String())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "ORG_STATS_DOTENV_TEST"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_ProcessEnvironmentWins(t *testing.T) {
	const key = "ORG_STATS_DOTENV_PRECEDENCE"
	t.Setenv(key, "from-process")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-process", os.Getenv(key))
}
