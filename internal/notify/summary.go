package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/ingest"
)

// SummaryKind identifies what a summary reports on.
type SummaryKind int

const (
	// SummaryZoneRun is the damage table of a finished zone instance.
	SummaryZoneRun SummaryKind = iota + 1
	// SummaryImport is the outcome of a batch import.
	SummaryImport
)

// Summary is one notification. Summaries with the same Key replace each
// other while queued.
type Summary struct {
	Kind        SummaryKind
	Key         string
	Title       string
	Lines       []string
	Footer      string
	TotalDamage int64
	Failed      bool
	Ts          time.Time
}

// ZoneRunSummary builds the summary of a single-zone session report.
// It returns false when the report has no damage to show.
func ZoneRunSummary(rep app.Report) (Summary, bool) {
	if len(rep.Rows) == 0 || rep.Zone == nil {
		return Summary{}, false
	}

	ts := rep.Zone.EnteredAt
	if rep.Zone.LeftAt != nil {
		ts = *rep.Zone.LeftAt
	}

	return Summary{
		Kind:        SummaryZoneRun,
		Key:         "zone:" + strconv.FormatInt(rep.Zone.ID, 10),
		Title:       rep.Zone.Name,
		Lines:       rep.Compact(),
		TotalDamage: rep.TotalDamage,
		Footer: fmt.Sprintf("%s damage in %s, %d kills",
			app.FormatDamage(rep.TotalDamage),
			time.Duration(rep.CombatSeconds*float64(time.Second)).Round(time.Second).String(),
			rep.Kills,
		),
		Ts: ts,
	}, true
}

// ImportSummary builds the summary of a finished batch import.
func ImportSummary(c ingest.Completion, now time.Time) Summary {
	return Summary{
		Kind:   SummaryImport,
		Key:    "import",
		Title:  "Import " + c.Outcome.String(),
		Lines:  []string{c.Message},
		Failed: c.Outcome != ingest.OutcomeSucceeded,
		Footer: fmt.Sprintf("%s lines, %s events, %d zones",
			humanize.Comma(int64(c.Lines)),
			humanize.Comma(int64(c.Events)),
			c.Zones,
		),
		Ts: now,
	}
}
