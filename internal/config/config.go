// Package config holds the immutable run configuration.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Defaults for the flags of the stats command.
const (
	DefaultOrg            = "torticity"
	DefaultSince          = "2024-01-01"
	DefaultUntil          = "2024-01-31"
	DefaultSearchInterval = 2 * time.Second
	DefaultSearchBurst    = 1
	DefaultMaxRestarts    = 3

	// DateLayout is the format GitHub search qualifiers expect.
	DateLayout = "2006-01-02"

	TokenEnv = "GITHUB_TOKEN"
)

// ErrInvalidRange is returned when the window ends before it starts.
var ErrInvalidRange = errors.New("until date is before since date")

// Config is built once at startup and passed by value.
// Nothing downstream mutates it.
type Config struct {
	Token string `validate:"required"`
	Org   string `validate:"required"`
	Since time.Time
	Until time.Time

	// SearchInterval spaces search queries; zero disables throttling.
	SearchInterval time.Duration `validate:"gte=0"`
	SearchBurst    int           `validate:"gte=1"`
	// Concurrency caps members collected at once; zero means unlimited.
	Concurrency int `validate:"gte=0"`
	MaxRestarts int `validate:"gte=0"`

	UseGraphQL bool
	Summary    bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the date window.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.Since.IsZero() || c.Until.IsZero() {
		return errors.New("invalid configuration: since and until are required")
	}
	if c.Until.Before(c.Since) {
		return errors.Wrapf(ErrInvalidRange, "%s..%s", c.SinceString(), c.UntilString())
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func (c Config) SinceString() string { return c.Since.Format(DateLayout) }
func (c Config) UntilString() string { return c.Until.Format(DateLayout) }

// DateRange renders the window as a search qualifier value, e.g. 2024-01-01..2024-01-31.
func (c Config) DateRange() string {
	return c.SinceString() + ".." + c.UntilString()
}
