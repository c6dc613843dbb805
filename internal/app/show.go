package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/timerange"
)

// runOnce performs a single cycle outside the scheduler.
func (a *App) runOnce(ctx context.Context, r timerange.Range) (poller.View, error) {
	p, err := a.newPoller(a.newSource(nil), poller.Options{Range: r})
	if err != nil {
		return poller.View{}, err
	}
	res := p.RunCycle(ctx, r)
	if res.Err != nil {
		return poller.View{}, fmt.Errorf("%s: %w", poller.ErrorMessage, res.Err)
	}
	if len(res.Unavailable) > 0 {
		a.Logger.Warn().Strs("unavailable", res.Unavailable).Msg("some datasets were unavailable")
	}
	return p.View(), nil
}

// Snapshot runs one cycle and prints the result.
func (a *App) Snapshot(ctx context.Context, opts SnapshotOptions) error {
	r, err := a.resolveRange(opts.Range)
	if err != nil {
		return err
	}
	view, err := a.runOnce(ctx, r)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Range\t%s\n", r)
	if st := view.Status; st != nil {
		fmt.Fprintf(writer, "Mode\t%s\n", st.Mode)
		fmt.Fprintf(writer, "State\t%s\n", st.State)
		fmt.Fprintf(writer, "Status\t%s\n", st.Status)
		fmt.Fprintf(writer, "Boiler\t%d °C (set %d °C)\n", st.Tboiler, st.Tset)
		fmt.Fprintf(writer, "Hot water\t%d °C\n", st.DHW)
		fmt.Fprintf(writer, "Outside\t%.1f °C\n", st.TBMP)
		fmt.Fprintf(writer, "Flame / Fan / Power\t%d / %d / %d\n", st.Flame, st.Fan, st.Power)
		fmt.Fprintf(writer, "CH pump / DHW pump\t%s / %s\n", onOff(bool(st.CHPump)), onOff(bool(st.DHWPump)))
	} else {
		fmt.Fprintln(writer, "Status\tunavailable")
	}
	fmt.Fprintln(writer)

	fmt.Fprintln(writer, "Time\tSet\tBoiler\tInlet\tDHW\tFlue\tOutside\tFlame\tPower")
	for _, s := range tail(len(view.History), opts.Rows) {
		h := view.History[s]
		fmt.Fprintf(writer, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.0f\t%d\n",
			h.FormattedDate, h.Tset, h.Tboiler, h.TDS18, h.DHW, h.KTYPE, h.TBMP, h.Flame, h.Power)
	}
	fmt.Fprintln(writer)

	fmt.Fprintln(writer, "Hour\tConsumption (kg)")
	for _, s := range tail(len(view.Consumption), opts.Rows) {
		c := view.Consumption[s]
		fmt.Fprintf(writer, "%s\t%.2f\n", c.FormattedDate, c.Consumption)
	}
	fmt.Fprintln(writer)

	fmt.Fprintln(writer, "Month\tConsumption (kg)")
	for _, m := range view.Monthly {
		fmt.Fprintf(writer, "%s\t%d\n", m.FormattedDate, m.Consumption)
	}

	return writer.Flush()
}

// Cycles prints the most recent journal entries.
func (a *App) Cycles(ctx context.Context, opts CyclesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("storage not configured; cannot show cycles")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentCycles(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no cycles recorded")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Finished (UTC)\tSeq\tRange\tOutcome\tDuration\tHistory\tConsumption\tMonthly\tUnavailable\tError")

	for _, rec := range records {
		errMsg := ""
		if rec.Error != nil {
			errMsg = sanitizeInline(*rec.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%d\t%dh\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			rec.FinishedAt.UTC().Format(time.RFC3339),
			rec.Seq,
			rec.RangeHours,
			rec.Outcome,
			rec.Duration().Round(time.Millisecond),
			rec.HistoryCount,
			rec.ConsumptionCount,
			rec.MonthlyCount,
			strings.Join(rec.Unavailable, ","),
			errMsg,
		)
	}

	return writer.Flush()
}

// tail returns the indexes of the last n of total items; n <= 0 means all.
func tail(total, n int) []int {
	start := 0
	if n > 0 && total > n {
		start = total - n
	}
	out := make([]int, 0, total-start)
	for i := start; i < total; i++ {
		out = append(out, i)
	}
	return out
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
