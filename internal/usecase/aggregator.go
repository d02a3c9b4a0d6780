// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/org-stats/internal/config"
	"github.com/naka-gawa/org-stats/internal/domain"
	"github.com/naka-gawa/org-stats/internal/gateway"
)

// ErrRestartsExhausted is returned when a run keeps hitting the rate limit.
var ErrRestartsExhausted = errors.New("rate limit restarts exhausted")

// Aggregator is the use case for aggregating organization stats.
// It orchestrates the fetching and combining of data.
type Aggregator struct {
	fetcher gateway.Fetcher
	gate    SearchGate
	cfg     config.Config
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, gate SearchGate, cfg config.Config, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		gate:    gate,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run collects stats for every member, restarting the whole run after a
// rate limit error at most cfg.MaxRestarts times. Other errors end the run.
// The returned slice is sorted by reviews given, most first.
func (a *Aggregator) Run(ctx context.Context) ([]domain.UserStats, error) {
	for attempt := 0; ; attempt++ {
		stats, err := a.collect(ctx)
		if err == nil {
			return stats, nil
		}

		var rl *domain.RateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}
		if attempt >= a.cfg.MaxRestarts {
			return nil, errors.Wrapf(ErrRestartsExhausted, "after %d restarts: %v", attempt, err)
		}

		wait := rl.ResetAt.Sub(a.now())
		a.logger.Warn("Rate limit exceeded, restarting run after reset",
			zap.Duration("wait", wait.Round(time.Second)),
			zap.Int("attempt", attempt+1),
			zap.Int("max_restarts", a.cfg.MaxRestarts))
		if err := a.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// collect is one full pass: quota check, member listing, statistic collection.
func (a *Aggregator) collect(ctx context.Context) ([]domain.UserStats, error) {
	a.logger.Debug("Usecase: Starting data aggregation...")

	if err := a.waitForQuota(ctx); err != nil {
		return nil, err
	}

	members, err := a.fetcher.FetchMembers(ctx, a.cfg.Org)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Collecting member stats",
		zap.String("org", a.cfg.Org),
		zap.Int("members", len(members)),
		zap.String("window", a.cfg.DateRange()))

	stats := make([]domain.UserStats, len(members))

	// Use an errgroup to collect all members concurrently.
	eg, egCtx := errgroup.WithContext(ctx)
	if a.cfg.Concurrency > 0 {
		eg.SetLimit(a.cfg.Concurrency)
	}
	for i, m := range members {
		i, m := i, m
		eg.Go(func() error {
			s, err := a.collectMember(egCtx, m.Login)
			if err != nil {
				return err
			}
			stats[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Debug("Usecase: All data fetched successfully.")

	SortByReviews(stats)
	return stats, nil
}

// waitForQuota blocks until the reset time when no primary quota is left.
func (a *Aggregator) waitForQuota(ctx context.Context) error {
	state, err := a.fetcher.FetchRateLimit(ctx)
	if err != nil {
		return err
	}
	if !state.Exhausted() {
		return nil
	}
	wait := state.Reset.Sub(a.now())
	a.logger.Warn("Rate limit exceeded, waiting for reset", zap.Duration("wait", wait.Round(time.Second)))
	return a.sleep(ctx, wait)
}

// collectMember runs the five searches for one member and joins them.
func (a *Aggregator) collectMember(ctx context.Context, login string) (domain.UserStats, error) {
	queries := memberQueries(a.cfg, login)
	var counts [len(queries)]int

	eg, egCtx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		eg.Go(func() error {
			if err := a.gate.Wait(egCtx); err != nil {
				return errors.Wrapf(err, "waiting to search %s for %s", q.name, login)
			}
			var err error
			if q.kind == commitSearch {
				counts[i], err = a.fetcher.CountCommits(egCtx, q.query)
			} else {
				counts[i], err = a.fetcher.CountIssues(egCtx, q.query)
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.UserStats{}, err
	}

	a.logger.Debug("member collected", zap.String("user", login), zap.Ints("counts", counts[:]))
	return domain.UserStats{
		Username: login,
		Reviews:  counts[0],
		Comments: counts[1],
		Commits:  counts[2],
		PROpened: counts[3],
		PRMerged: counts[4],
	}, nil
}

// SortByReviews orders stats by reviews given, most first.
// Ties are ordered by username so output is deterministic.
func SortByReviews(stats []domain.UserStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Reviews != stats[j].Reviews {
			return stats[i].Reviews > stats[j].Reviews
		}
		return stats[i].Username < stats[j].Username
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
