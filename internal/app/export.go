package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/render"
	"npbc-dashboard/internal/theme"
	"npbc-dashboard/internal/visibility"
)

// Export runs one cycle and writes the charts as PNG and the datasets as
// CSV into opts.Dir.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.NoPNG && opts.NoCSV {
		return errors.New("nothing to export: both --no-png and --no-csv given")
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	r, err := a.resolveRange(opts.Range)
	if err != nil {
		return err
	}

	t := theme.Default
	if opts.Theme != "" {
		if t, err = theme.Parse(opts.Theme); err != nil {
			return fmt.Errorf("--theme: %w", err)
		}
	}

	vis := visibility.New()
	for _, id := range opts.Hidden {
		if !visibility.Known(id) {
			return fmt.Errorf("--hide: unknown series %q", id)
		}
		if vis.Visible(id) {
			vis.Toggle(id)
		}
	}

	view, err := a.runOnce(ctx, r)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	var written []string
	if !opts.NoPNG {
		renderer, err := a.newRenderer()
		if err != nil {
			return err
		}
		for _, c := range render.Charts {
			path := filepath.Join(opts.Dir, string(c)+".png")
			if err := writeChartPNG(path, renderer, c, view, vis, t); err != nil {
				return err
			}
			written = append(written, path)
		}
	}

	if !opts.NoCSV {
		writers := []struct {
			name  string
			write func(string, poller.View) error
		}{
			{"history.csv", writeHistoryCSV},
			{"consumption.csv", writeConsumptionCSV},
			{"monthly.csv", writeMonthlyCSV},
		}
		for _, w := range writers {
			path := filepath.Join(opts.Dir, w.name)
			if err := w.write(path, view); err != nil {
				return err
			}
			written = append(written, path)
		}
	}

	a.Logger.Info().
		Str("range", r.String()).
		Int("history", len(view.History)).
		Strs("files", written).
		Msg("export finished")
	return nil
}

func writeChartPNG(path string, renderer *render.Renderer, c render.Chart, view poller.View, vis *visibility.State, t theme.Theme) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := renderer.Render(file, c, view, vis, t); err != nil {
		return fmt.Errorf("render %s: %w", c, err)
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func writeHistoryCSV(path string, view poller.View) error {
	header := []string{"timestamp", "date", "Tset", "Tboiler", "TDS18", "DHW", "KTYPE", "TBMP", "Flame", "Power", "ThermostatStop"}
	rows := make([][]string, 0, len(view.History))
	for _, s := range view.History {
		rows = append(rows, []string{
			s.Time().UTC().Format(time.RFC3339),
			s.FormattedDate,
			formatFloat(s.Tset),
			formatFloat(s.Tboiler),
			formatFloat(s.TDS18),
			formatFloat(s.DHW),
			formatFloat(s.KTYPE),
			formatFloat(s.TBMP),
			formatFloat(s.Flame),
			strconv.Itoa(s.Power),
			strconv.FormatBool(s.ThermostatStop),
		})
	}
	return writeCSV(path, header, rows)
}

func writeConsumptionCSV(path string, view poller.View) error {
	header := []string{"timestamp", "hour", "consumption_kg"}
	rows := make([][]string, 0, len(view.Consumption))
	for _, s := range view.Consumption {
		rows = append(rows, []string{
			time.UnixMilli(s.Timestamp).UTC().Format(time.RFC3339),
			s.FormattedDate,
			strconv.FormatFloat(s.Consumption, 'f', 2, 64),
		})
	}
	return writeCSV(path, header, rows)
}

func writeMonthlyCSV(path string, view poller.View) error {
	header := []string{"month", "label", "consumption_kg"}
	rows := make([][]string, 0, len(view.Monthly))
	for _, s := range view.Monthly {
		rows = append(rows, []string{s.Month, s.FormattedDate, strconv.FormatInt(s.Consumption, 10)})
	}
	return writeCSV(path, header, rows)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
