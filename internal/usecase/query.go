package usecase

import (
	"fmt"

	"github.com/naka-gawa/org-stats/internal/config"
)

type searchKind int

const (
	issueSearch searchKind = iota
	commitSearch
)

// statQuery is one of the five searches issued per member.
type statQuery struct {
	name  string
	kind  searchKind
	query string
}

// memberQueries builds the five searches for a member, in counter order:
// reviews, comments, commits, PRs opened, PRs merged.
// NOTE: commit search filters on "committer-date" and merged PRs on "merged";
// everything else uses "created".
func memberQueries(cfg config.Config, login string) [5]statQuery {
	window := cfg.DateRange()
	return [5]statQuery{
		{name: "reviews", kind: issueSearch, query: fmt.Sprintf("reviewed-by:%s org:%s type:pr created:%s", login, cfg.Org, window)},
		{name: "comments", kind: issueSearch, query: fmt.Sprintf("commenter:%s org:%s type:pr created:%s", login, cfg.Org, window)},
		{name: "commits", kind: commitSearch, query: fmt.Sprintf("author:%s org:%s committer-date:%s", login, cfg.Org, window)},
		{name: "pr_opened", kind: issueSearch, query: fmt.Sprintf("author:%s org:%s type:pr created:%s", login, cfg.Org, window)},
		{name: "pr_merged", kind: issueSearch, query: fmt.Sprintf("author:%s org:%s type:pr merged:%s", login, cfg.Org, window)},
	}
}
