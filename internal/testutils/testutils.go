// Package testutils holds the fixtures of the conference review scenarios used across the test
// suites.
package testutils

import (
	"context"
	"time"

	"github.com/l7mp/dflow/pkg/dbsp"
)

// Writer is anything that accepts rows for a named table.
type Writer interface {
	Insert(ctx context.Context, table string, row dbsp.Row) (uint64, error)
}

var (
	// ReviewSchema is review(paper, reviewer, contents).
	ReviewSchema = dbsp.Schema{"paper", "reviewer", "contents"}
	// ReviewKey keys a review on (paper, reviewer).
	ReviewKey = []int{0, 1}
	// ReviewAssgnSchema is review_assgn(paper, reviewer).
	ReviewAssgnSchema = dbsp.Schema{"paper", "reviewer"}

	// Reviews and ReviewAssignments are the rows of the basic policy scenario: reviewer r2 has
	// written a review for paper 2 and may see every review of it, anonymized.
	Reviews = []dbsp.Row{
		dbsp.NewRow(2, "r1", "great paper"),
		dbsp.NewRow(2, "r2", "interesting"),
	}
	ReviewAssignments = []dbsp.Row{
		dbsp.NewRow(2, "r1"),
		dbsp.NewRow(2, "r2"),
		dbsp.NewRow(3, "r2"),
	}
)

// Rows of the conference scenarios.
var (
	PaperSchema           = dbsp.Schema{"paper", "author", "accepted"}
	CoauthorSchema        = dbsp.Schema{"paper", "author"}
	UserProfileSchema     = dbsp.Schema{"level", "username"}
	PaperPCConflictSchema = dbsp.Schema{"username", "paper"}

	Papers = []dbsp.Row{
		dbsp.NewRow(1, "a1", 0),
		dbsp.NewRow(2, "a2", 0),
		dbsp.NewRow(3, "a3", 0),
	}
	Coauthors = []dbsp.Row{
		dbsp.NewRow(1, "a1"),
		dbsp.NewRow(2, "a1"),
		dbsp.NewRow(2, "a2"),
		dbsp.NewRow(3, "a3"),
	}
	ConfReviewAssignments = []dbsp.Row{
		dbsp.NewRow(1, "r1"),
		dbsp.NewRow(3, "r1"),
		dbsp.NewRow(1, "r2"),
		dbsp.NewRow(2, "r3"),
	}
	ConfReviews = []dbsp.Row{
		dbsp.NewRow(1, "r1", "Great paper"),
		dbsp.NewRow(1, "r2", "Hard to understand"),
	}
	UserProfiles = []dbsp.Row{
		dbsp.NewRow("none", "a1"),
		dbsp.NewRow("none", "a2"),
		dbsp.NewRow("none", "a3"),
		dbsp.NewRow("none", "r1"),
		dbsp.NewRow("none", "r2"),
		dbsp.NewRow("none", "r3"),
		dbsp.NewRow("pc", "pc1"),
	}
	PaperPCConflicts = []dbsp.Row{
		dbsp.NewRow("pc1", 2),
	}
)

// Populate inserts rows into a table and returns the sequence number of the last write.
func Populate(ctx context.Context, w Writer, table string, rows []dbsp.Row) (uint64, error) {
	var seq uint64
	for _, row := range rows {
		s, err := w.Insert(ctx, table, row)
		if err != nil {
			return seq, err
		}
		seq = s
	}
	return seq, nil
}

// Context returns a context for a single test step.
func Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
