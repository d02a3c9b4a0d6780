package gateway

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/pkg/errors"

	"github.com/naka-gawa/org-stats/internal/domain"
)

const (
	headerRateReset  = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// forbiddenTransport turns every 403 response into a *domain.RateLimitError.
// It sits above the secondary rate limit waiter, so it only sees the 403s
// the waiter gave up on.
type forbiddenTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func newForbiddenTransport(base http.RoundTripper) *forbiddenTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &forbiddenTransport{base: base, now: time.Now}
}

func (t *forbiddenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(body))
	return nil, &domain.RateLimitError{
		ResetAt: resetTime(resp.Header, t.now()),
		Err:     errors.Errorf("%s %s: %s %s", req.Method, req.URL.Path, resp.Status, msg),
	}
}

// resetTime reads the epoch reset header, falling back to Retry-After seconds.
// A zero time means the response carried neither.
func resetTime(h http.Header, now time.Time) time.Time {
	if v := h.Get(headerRateReset); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	if v := h.Get(headerRetryAfter); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return now.Add(time.Duration(secs) * time.Second)
		}
	}
	return time.Time{}
}

// classifyError maps the rate limit errors go-github produces on its own
// (for example from its client-side quota check) onto *domain.RateLimitError.
func classifyError(err error, now time.Time) error {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		return err
	}

	var primary *github.RateLimitError
	if errors.As(err, &primary) {
		return &domain.RateLimitError{ResetAt: primary.Rate.Reset.Time, Err: err}
	}

	// go-github reports 429 as AbuseRateLimitError too; only 403 restarts a run.
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) && abuse.Response != nil && abuse.Response.StatusCode == http.StatusForbidden {
		return &domain.RateLimitError{ResetAt: now.Add(abuse.GetRetryAfter()), Err: err}
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusForbidden {
		return &domain.RateLimitError{ResetAt: resetTime(errResp.Response.Header, now), Err: err}
	}
	return err
}
