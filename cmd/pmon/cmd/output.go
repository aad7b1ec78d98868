package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	apiclient "github.com/donaldgifford/price-monitor/internal/api/client"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

// printSubscriptionTable numbers rows from 1 so the index can be passed
// straight to unsubscribe.
func printSubscriptionTable(w io.Writer, subs []domain.Subscription) error {
	tw := newTabWriter(w)
	tw.writef("#\tSITE\tPRICE\tTARGET\tSTATUS\tCHECKED\tURL\n")
	for i := range subs {
		s := &subs[i]
		tw.writef("%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			s.Site,
			priceOrDash(s.LastPrice),
			priceOrDash(s.TargetPrice),
			s.Status,
			timeOrDash(s),
			truncate(s.URL, 60),
		)
	}
	return tw.finish()
}

func printSubscriptionDetail(w io.Writer, s *domain.Subscription) error {
	tw := newTabWriter(w)
	tw.writef("ID:\t%s\n", s.ID)
	tw.writef("Owner:\t%s\n", s.Owner)
	tw.writef("URL:\t%s\n", s.URL)
	tw.writef("Site:\t%s\n", s.Site)
	tw.writef("Price:\t%s\n", priceOrDash(s.LastPrice))
	tw.writef("Target:\t%s\n", priceOrDash(s.TargetPrice))
	tw.writef("Status:\t%s\n", s.Status)
	tw.writef("Last Checked:\t%s\n", timeOrDash(s))
	return tw.finish()
}

func printHistoryTable(w io.Writer, events []domain.ChangeEvent) error {
	tw := newTabWriter(w)
	tw.writef("AT\tCLASS\tPREVIOUS\tNEW\tNOTE\n")
	for i := range events {
		e := &events[i]
		note := truncate(e.FailureReason, 40)
		if e.Baseline {
			note = "baseline"
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			e.GeneratedAt.Format(timeLayout),
			e.Classification,
			priceOrDash(e.Previous),
			priceOrDash(e.New),
			note,
		)
	}
	return tw.finish()
}

func printCycleSummary(w io.Writer, s *domain.CycleSummary) error {
	tw := newTabWriter(w)
	tw.writef("Checked:\t%d\n", s.Checked)
	tw.writef("Changed:\t%d\n", s.Changed)
	tw.writef("Failed:\t%d\n", s.Failed)
	tw.writef("Notified:\t%d\n", s.Notified)
	tw.writef("Duration:\t%s\n", s.Duration)
	return tw.finish()
}

func printSystemState(w io.Writer, st *apiclient.SystemState) error {
	tw := newTabWriter(w)
	tw.writef("State:\t%s\n", st.State)
	if st.LastCycle != nil {
		tw.writef("Last Cycle:\t%s\n", st.LastCycle.StartedAt.Format(timeLayout))
		tw.writef("Checked:\t%d\n", st.LastCycle.Checked)
		tw.writef("Changed:\t%d\n", st.LastCycle.Changed)
		tw.writef("Failed:\t%d\n", st.LastCycle.Failed)
	}
	if st.NextPollAt != nil {
		tw.writef("Next Poll:\t%s\n", st.NextPollAt.Format(timeLayout))
	}
	return tw.finish()
}

func printJobRunsTable(w io.Writer, runs []apiclient.JobRun) error {
	tw := newTabWriter(w)
	tw.writef("JOB\tSTATUS\tSTARTED\tDURATION\tERROR\n")
	for i := range runs {
		r := &runs[i]
		duration := "-"
		if r.DurationSeconds != nil {
			duration = time.Duration(*r.DurationSeconds * float64(time.Second)).Round(time.Millisecond).String()
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format(timeLayout),
			duration,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func priceOrDash(p *domain.Price) string {
	if p == nil {
		return "-"
	}
	return p.String()
}

func timeOrDash(s *domain.Subscription) string {
	if s.LastCheckedAt == nil {
		return "-"
	}
	return s.LastCheckedAt.Format(timeLayout)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
