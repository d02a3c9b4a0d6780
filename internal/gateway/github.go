// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/pkg/errors"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/org-stats/internal/domain"
)

// membersPageSize is the only page of members that is ever requested.
const membersPageSize = 100

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchRateLimit(ctx context.Context) (domain.RateLimitState, error)
	FetchMembers(ctx context.Context, org string) ([]domain.OrgMember, error)
	// CountIssues returns the total_count of an issue/PR search query.
	CountIssues(ctx context.Context, query string) (int, error)
	// CountCommits returns the total_count of a commit search query.
	CountCommits(ctx context.Context, query string) (int, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	useGraphQL    bool
	logger        *zap.Logger
	now           func() time.Time
}

// issueCountQuery asks GraphQL only for the match count of an issue search.
type issueCountQuery struct {
	Search struct {
		IssueCount int
	} `graphql:"search(query: $query, type: ISSUE, first: 1)"`
}

// Option customises a GitHubGateway.
type Option func(g *GitHubGateway, httpClient *http.Client) error

// WithBaseURL points both the REST and the GraphQL client at baseURL,
// e.g. a GitHub Enterprise host or a test server.
func WithBaseURL(baseURL string) Option {
	return func(g *GitHubGateway, httpClient *http.Client) error {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return errors.Wrapf(err, "invalid base URL %q", baseURL)
		}
		g.restClient.BaseURL = u
		g.graphqlClient = githubv4.NewEnterpriseClient(u.String()+"graphql", httpClient)
		return nil
	}
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// With useGraphQL, issue searches go through the GraphQL API; commit search
// always uses REST.
func NewGitHubGateway(token string, useGraphQL bool, logger *zap.Logger, opts ...Option) (Fetcher, error) {
	httpClient, err := newHTTPClient(token, nil, logger)
	if err != nil {
		return nil, err
	}
	g := &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		useGraphQL:    useGraphQL,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt(g, httpClient); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// newHTTPClient assembles the transport chain:
// oauth2 -> forbiddenTransport -> secondary rate limit waiter -> base.
// The waiter never sleeps, it only reports; every 403 reaches
// forbiddenTransport and ends the current run.
func newHTTPClient(token string, base http.RoundTripper, logger *zap.Logger) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(base,
		github_ratelimit.WithSingleSleepLimit(0, func(cbc *github_ratelimit.CallbackContext) {
			fields := []zap.Field{}
			if cbc.SleepUntil != nil {
				fields = append(fields, zap.Time("until", *cbc.SleepUntil))
			}
			if cbc.Request != nil {
				fields = append(fields, zap.String("path", cbc.Request.URL.Path))
			}
			logger.Warn("secondary rate limit hit", fields...)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rate limit waiter")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   newForbiddenTransport(rateLimitWaiter),
			Source: ts,
		},
	}, nil
}

// FetchRateLimit reads the primary quota from the rate limit response headers.
func (g *GitHubGateway) FetchRateLimit(ctx context.Context) (domain.RateLimitState, error) {
	_, resp, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		return domain.RateLimitState{}, errors.Wrap(classifyError(err, g.now()), "failed to check rate limit")
	}
	state := domain.RateLimitState{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
	g.logger.Debug("rate limit checked",
		zap.Int("remaining", state.Remaining),
		zap.Int("limit", state.Limit),
		zap.Time("reset", state.Reset))
	return state, nil
}

// FetchMembers lists the organization members. Only the first page is read.
func (g *GitHubGateway) FetchMembers(ctx context.Context, org string) ([]domain.OrgMember, error) {
	opts := &github.ListMembersOptions{ListOptions: github.ListOptions{PerPage: membersPageSize}}
	users, resp, err := g.restClient.Organizations.ListMembers(ctx, org, opts)
	if err != nil {
		return nil, errors.Wrapf(classifyError(err, g.now()), "failed to list members of %s", org)
	}
	if resp != nil && resp.NextPage != 0 {
		g.logger.Warn("member list is truncated to the first page",
			zap.String("org", org), zap.Int("members", len(users)))
	}

	members := make([]domain.OrgMember, 0, len(users))
	for _, u := range users {
		if login := u.GetLogin(); login != "" {
			members = append(members, domain.OrgMember{Login: login})
		}
	}
	g.logger.Debug("members listed", zap.String("org", org), zap.Int("count", len(members)))
	return members, nil
}

func (g *GitHubGateway) CountIssues(ctx context.Context, query string) (int, error) {
	if g.useGraphQL {
		return g.countIssuesGraphQL(ctx, query)
	}
	result, _, err := g.restClient.Search.Issues(ctx, query, countOptions())
	if err != nil {
		return 0, errors.Wrapf(classifyError(err, g.now()), "failed to search issues with REST API (%s)", query)
	}
	g.logger.Debug("issue search", zap.String("query", query), zap.Int("total", result.GetTotal()))
	return result.GetTotal(), nil
}

func (g *GitHubGateway) CountCommits(ctx context.Context, query string) (int, error) {
	result, _, err := g.restClient.Search.Commits(ctx, query, countOptions())
	if err != nil {
		return 0, errors.Wrapf(classifyError(err, g.now()), "failed to search commits with REST API (%s)", query)
	}
	g.logger.Debug("commit search", zap.String("query", query), zap.Int("total", result.GetTotal()))
	return result.GetTotal(), nil
}

func (g *GitHubGateway) countIssuesGraphQL(ctx context.Context, query string) (int, error) {
	var q issueCountQuery
	variables := map[string]interface{}{"query": githubv4.String(query)}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return 0, errors.Wrapf(classifyError(err, g.now()), "failed to execute GraphQL query for counts (%s)", query)
	}
	g.logger.Debug("issue search (graphql)", zap.String("query", query), zap.Int("total", q.Search.IssueCount))
	return q.Search.IssueCount, nil
}

// countOptions requests a single item; only total_count is used.
func countOptions() *github.SearchOptions {
	return &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}}
}
