// Package render writes aggregated stats as plain-text tables.
package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/naka-gawa/org-stats/internal/domain"
)

// Headers are the columns of the stats table, in row order.
var Headers = []string{"Username", "# PR Reviews", "# PR Comments", "# Commits", "# PR Opened", "# PR Merged"}

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Row converts one member's stats into table cells.
func Row(s domain.UserStats) []string {
	return []string{
		s.Username,
		strconv.Itoa(s.Reviews),
		strconv.Itoa(s.Comments),
		strconv.Itoa(s.Commits),
		strconv.Itoa(s.PROpened),
		strconv.Itoa(s.PRMerged),
	}
}

// Table writes one row per entry of userStats, in the given order.
func Table(w io.Writer, userStats []domain.UserStats) error {
	rows := make([][]string, 0, len(userStats))
	for _, s := range userStats {
		rows = append(rows, Row(s))
	}
	return write(w, Headers, rows)
}

// Summary writes total, mean and median per counter.
func Summary(w io.Writer, userStats []domain.UserStats) error {
	columns := [][]float64{
		make([]float64, 0, len(userStats)),
		make([]float64, 0, len(userStats)),
		make([]float64, 0, len(userStats)),
		make([]float64, 0, len(userStats)),
		make([]float64, 0, len(userStats)),
	}
	for _, s := range userStats {
		for i, v := range []int{s.Reviews, s.Comments, s.Commits, s.PROpened, s.PRMerged} {
			columns[i] = append(columns[i], float64(v))
		}
	}

	total := []string{"Total"}
	mean := []string{"Mean"}
	median := []string{"Median"}
	for _, col := range columns {
		sum, err := summarize(stats.Sum, col)
		if err != nil {
			return errors.Wrap(err, "failed to compute total")
		}
		avg, err := summarize(stats.Mean, col)
		if err != nil {
			return errors.Wrap(err, "failed to compute mean")
		}
		med, err := summarize(stats.Median, col)
		if err != nil {
			return errors.Wrap(err, "failed to compute median")
		}
		total = append(total, strconv.FormatFloat(sum, 'f', -1, 64))
		mean = append(mean, strconv.FormatFloat(avg, 'f', 1, 64))
		median = append(median, strconv.FormatFloat(med, 'f', 1, 64))
	}

	headers := append([]string{""}, Headers[1:]...)
	return write(w, headers, [][]string{total, mean, median})
}

// summarize treats an empty column as zero.
func summarize(fn func(stats.Float64Data) (float64, error), col []float64) (float64, error) {
	if len(col) == 0 {
		return 0, nil
	}
	return fn(col)
}

func write(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...).
		Rows(rows...)
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return errors.Wrap(err, "failed to write table")
	}
	return nil
}
