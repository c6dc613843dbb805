package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbc-dashboard/internal/alerting"
	"npbc-dashboard/internal/device"
	"npbc-dashboard/internal/fetcher"
	"npbc-dashboard/internal/metrics"
	"npbc-dashboard/internal/storage"
	"npbc-dashboard/internal/timerange"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	statsSince []int64

	info        func(ctx context.Context) ([]device.StatusRecord, bool)
	stats       func(ctx context.Context, since int64) ([]device.HistoryRecord, bool)
	consumption func(ctx context.Context, since int64) ([]device.ConsumptionRecord, bool)
	monthly     func(ctx context.Context) ([]device.MonthlyRecord, bool)
}

func newFakeSource() *fakeSource {
	ym := "2024-03"
	work := decimal.NewFromInt(3600)
	return &fakeSource{
		info: func(context.Context) ([]device.StatusRecord, bool) {
			return []device.StatusRecord{{Mode: device.ModeAuto, State: device.StateBurning, Tboiler: 64}}, true
		},
		stats: func(context.Context, int64) ([]device.HistoryRecord, bool) {
			return []device.HistoryRecord{
				{Date: "2024-03-10T11:00:00", Tboiler: 60, Power: 1},
				{Date: "2024-03-10T11:30:00", Tboiler: 62, Power: 3},
			}, true
		},
		consumption: func(context.Context, int64) ([]device.ConsumptionRecord, bool) {
			return []device.ConsumptionRecord{{Timestamp: "2024-03-10T11:00:00", FFWorkTime: decimal.NewFromInt(100)}}, true
		},
		monthly: func(context.Context) ([]device.MonthlyRecord, bool) {
			return []device.MonthlyRecord{{YearMonth: &ym, FFWork: &work}}, true
		},
	}
}

func (f *fakeSource) Info(ctx context.Context) ([]device.StatusRecord, bool) { return f.info(ctx) }

func (f *fakeSource) Stats(ctx context.Context, since int64) ([]device.HistoryRecord, bool) {
	f.mu.Lock()
	f.statsSince = append(f.statsSince, since)
	f.mu.Unlock()
	return f.stats(ctx, since)
}

func (f *fakeSource) ConsumptionStats(ctx context.Context, since int64) ([]device.ConsumptionRecord, bool) {
	return f.consumption(ctx, since)
}

func (f *fakeSource) ConsumptionByMonth(ctx context.Context) ([]device.MonthlyRecord, bool) {
	return f.monthly(ctx)
}

func (f *fakeSource) sinces() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.statsSince...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

type memoryJournal struct {
	mu      sync.Mutex
	records []storage.CycleRecord
	cutoffs []time.Time
}

func (j *memoryJournal) RecordCycle(_ context.Context, rec storage.CycleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memoryJournal) ListRecentCycles(context.Context, int) ([]storage.CycleRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]storage.CycleRecord(nil), j.records...), nil
}

func (j *memoryJournal) DeleteCyclesBefore(_ context.Context, olderThan time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cutoffs = append(j.cutoffs, olderThan)
	return nil
}

func newTestPoller(src Source, opts Options) *Poller {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return New(src, opts, zerolog.Nop())
}

func TestInitialViewIsEmpty(t *testing.T) {
	p := newTestPoller(newFakeSource(), Options{Range: timerange.Hours6})

	view := p.View()
	assert.Equal(t, timerange.Hours6, view.Range)
	assert.Nil(t, view.Status)
	assert.NotNil(t, view.History)
	assert.Empty(t, view.History)
	assert.False(t, view.Error)
}

func TestRunCycleCommitsAllDatasets(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{Range: timerange.Hours12})

	res := p.RunCycle(context.Background(), timerange.Hours12)
	require.NoError(t, res.Err)
	assert.Equal(t, metrics.CycleCommitted, res.Outcome)
	assert.Empty(t, res.Unavailable)

	view := p.View()
	assert.Equal(t, uint64(1), view.Seq)
	assert.Equal(t, timerange.Hours12, view.Range)
	require.NotNil(t, view.Status)
	assert.Equal(t, device.ModeAuto, view.Status.Mode)
	require.Len(t, view.History, 2)
	assert.Equal(t, 0, view.History[0].Power)
	assert.Equal(t, 2, view.History[1].Power)
	assert.Equal(t, "11:30", view.History[1].FormattedDate)
	require.Len(t, view.Consumption, 1)
	assert.Equal(t, 1.03, view.Consumption[0].Consumption)
	require.Len(t, view.Monthly, 1)
	assert.Equal(t, "Mar 2024", view.Monthly[0].FormattedDate)
	assert.Equal(t, int64(37), view.Monthly[0].Consumption)
	assert.False(t, view.Error)
	assert.Equal(t, fixedNow, view.UpdatedAt)

	assert.Equal(t, []int64{fixedNow.Unix() - 12*3600}, src.sinces())
}

func TestNullDatasetBecomesEmptyWithoutBanner(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{})

	require.Equal(t, metrics.CycleCommitted, p.RunCycle(context.Background(), timerange.Hours24).Outcome)
	require.Len(t, p.View().Monthly, 1)

	src.monthly = func(context.Context) ([]device.MonthlyRecord, bool) { return nil, false }
	res := p.RunCycle(context.Background(), timerange.Hours24)

	assert.Equal(t, metrics.CycleCommitted, res.Outcome)
	assert.Equal(t, []string{fetcher.EndpointConsumptionByMonth}, res.Unavailable)

	view := p.View()
	assert.NotNil(t, view.Monthly)
	assert.Empty(t, view.Monthly)
	assert.Len(t, view.History, 2)
	assert.Len(t, view.Consumption, 1)
	assert.NotNil(t, view.Status)
	assert.False(t, view.Error)
	assert.Empty(t, view.ErrorMessage)
}

func TestUnavailableStatusClearsSnapshot(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{})
	p.RunCycle(context.Background(), timerange.Hours24)

	src.info = func(context.Context) ([]device.StatusRecord, bool) { return nil, false }
	p.RunCycle(context.Background(), timerange.Hours24)

	assert.Nil(t, p.View().Status)
	assert.False(t, p.View().Error)
}

func TestUnavailableFetchIgnoresReturnedRecords(t *testing.T) {
	src := newFakeSource()
	full := newFakeSource()
	p := newTestPoller(src, Options{})
	p.RunCycle(context.Background(), timerange.Hours24)

	src.info = func(ctx context.Context) ([]device.StatusRecord, bool) {
		records, _ := full.info(ctx)
		return records, false
	}
	src.stats = func(ctx context.Context, since int64) ([]device.HistoryRecord, bool) {
		records, _ := full.stats(ctx, since)
		return records, false
	}
	src.consumption = func(ctx context.Context, since int64) ([]device.ConsumptionRecord, bool) {
		records, _ := full.consumption(ctx, since)
		return records, false
	}
	src.monthly = func(ctx context.Context) ([]device.MonthlyRecord, bool) {
		records, _ := full.monthly(ctx)
		return records, false
	}
	res := p.RunCycle(context.Background(), timerange.Hours24)

	assert.Equal(t, metrics.CycleCommitted, res.Outcome)
	assert.Len(t, res.Unavailable, 4)

	view := p.View()
	assert.Nil(t, view.Status)
	assert.Empty(t, view.History)
	assert.Empty(t, view.Consumption)
	assert.Empty(t, view.Monthly)
	assert.False(t, view.Error)
}

func TestFailureKeepsPreviousData(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{})

	p.RunCycle(context.Background(), timerange.Hours24)
	before := p.View()

	src.stats = func(context.Context, int64) ([]device.HistoryRecord, bool) {
		panic("decoder exploded")
	}
	res := p.RunCycle(context.Background(), timerange.Hours48)

	require.Error(t, res.Err)
	assert.Equal(t, metrics.CycleFailed, res.Outcome)

	view := p.View()
	assert.True(t, view.Error)
	assert.Equal(t, ErrorMessage, view.ErrorMessage)
	assert.Equal(t, before.History, view.History)
	assert.Equal(t, before.Consumption, view.Consumption)
	assert.Equal(t, before.Monthly, view.Monthly)
	assert.Equal(t, before.Status, view.Status)
	assert.Equal(t, timerange.Hours24, view.Range)

	src.stats = newFakeSource().stats
	p.RunCycle(context.Background(), timerange.Hours24)
	assert.False(t, p.View().Error)
	assert.Empty(t, p.View().ErrorMessage)
}

func TestStaleCycleIsDiscarded(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls sync.Mutex
	first := true
	src.info = func(context.Context) ([]device.StatusRecord, bool) {
		calls.Lock()
		block := first
		first = false
		calls.Unlock()
		if block {
			close(entered)
			<-release
			return []device.StatusRecord{{Mode: device.ModeStandby}}, true
		}
		return []device.StatusRecord{{Mode: device.ModeTimer}}, true
	}

	slow := make(chan Result, 1)
	go func() { slow <- p.RunCycle(context.Background(), timerange.Hours12) }()
	<-entered

	fast := p.RunCycle(context.Background(), timerange.Hours48)
	require.Equal(t, metrics.CycleCommitted, fast.Outcome)
	require.Equal(t, uint64(2), fast.Seq)

	close(release)
	late := <-slow
	assert.Equal(t, uint64(1), late.Seq)
	assert.Equal(t, metrics.CycleStale, late.Outcome)

	view := p.View()
	assert.Equal(t, uint64(2), view.Seq)
	assert.Equal(t, timerange.Hours48, view.Range)
	assert.Equal(t, device.ModeTimer, view.Status.Mode)
}

func TestFetchesOverlap(t *testing.T) {
	src := newFakeSource()
	var arrived sync.WaitGroup
	arrived.Add(4)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()

	var mu sync.Mutex
	overlapped := 0
	barrier := func() {
		arrived.Done()
		select {
		case <-all:
			mu.Lock()
			overlapped++
			mu.Unlock()
		case <-time.After(2 * time.Second):
		}
	}

	info, stats, cons, monthly := src.info, src.stats, src.consumption, src.monthly
	src.info = func(ctx context.Context) ([]device.StatusRecord, bool) { barrier(); return info(ctx) }
	src.stats = func(ctx context.Context, s int64) ([]device.HistoryRecord, bool) { barrier(); return stats(ctx, s) }
	src.consumption = func(ctx context.Context, s int64) ([]device.ConsumptionRecord, bool) {
		barrier()
		return cons(ctx, s)
	}
	src.monthly = func(ctx context.Context) ([]device.MonthlyRecord, bool) { barrier(); return monthly(ctx) }

	p := newTestPoller(src, Options{})
	res := p.RunCycle(context.Background(), timerange.Hours24)

	assert.Equal(t, metrics.CycleCommitted, res.Outcome)
	assert.Equal(t, 4, overlapped)
}

func TestNotifiesOnFailureAndRecovery(t *testing.T) {
	src := newFakeSource()
	notifier := &recordingNotifier{}
	p := newTestPoller(src, Options{Notifier: notifier})
	ctx := context.Background()

	p.RunCycle(ctx, timerange.Hours24)
	src.consumption = func(context.Context, int64) ([]device.ConsumptionRecord, bool) { panic("boom") }
	p.RunCycle(ctx, timerange.Hours24)
	p.RunCycle(ctx, timerange.Hours24)
	src.consumption = newFakeSource().consumption
	p.RunCycle(ctx, timerange.Hours24)

	require.Len(t, notifier.notes, 2)
	assert.Equal(t, alerting.KindFailure, notifier.notes[0].Kind)
	assert.Equal(t, uint64(2), notifier.notes[0].Seq)
	assert.Equal(t, 1, notifier.notes[0].Failures)
	assert.Equal(t, ErrorMessage, notifier.notes[0].Message)
	assert.Equal(t, alerting.KindRecovery, notifier.notes[1].Kind)
	assert.Equal(t, uint64(4), notifier.notes[1].Seq)
	assert.Equal(t, 2, notifier.notes[1].Failures)
}

func TestJournalRecordsEveryCycle(t *testing.T) {
	src := newFakeSource()
	journal := &memoryJournal{}
	p := newTestPoller(src, Options{Journal: journal, JournalRetention: 24 * time.Hour})
	ctx := context.Background()

	p.RunCycle(ctx, timerange.Hours6)
	src.info = func(context.Context) ([]device.StatusRecord, bool) { panic("nil map") }
	p.RunCycle(ctx, timerange.Hours6)

	require.Len(t, journal.records, 2)
	ok := journal.records[0]
	assert.Equal(t, metrics.CycleCommitted, ok.Outcome)
	assert.Equal(t, 6, ok.RangeHours)
	assert.Equal(t, 2, ok.HistoryCount)
	assert.Equal(t, 1, ok.MonthlyCount)
	assert.Nil(t, ok.Error)

	failed := journal.records[1]
	assert.Equal(t, metrics.CycleFailed, failed.Outcome)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "nil map")

	require.Len(t, journal.cutoffs, 2)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), journal.cutoffs[0])
}

func TestSubscribersReceiveLatestView(t *testing.T) {
	p := newTestPoller(newFakeSource(), Options{})
	views, cancel := p.Subscribe()
	defer cancel()

	p.RunCycle(context.Background(), timerange.Hours24)
	p.RunCycle(context.Background(), timerange.Hours72)

	select {
	case v := <-views:
		assert.Equal(t, uint64(2), v.Seq)
		assert.Equal(t, timerange.Hours72, v.Range)
	case <-time.After(time.Second):
		t.Fatal("no view published")
	}

	cancel()
	_, open := <-views
	assert.False(t, open)
}

func TestRunClosesSubscriptionsOnExit(t *testing.T) {
	p := newTestPoller(newFakeSource(), Options{Interval: time.Hour})
	views, cancelSub := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.View().Seq == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	drained := false
	for !drained {
		select {
		case _, open := <-views:
			drained = !open
		case <-time.After(time.Second):
			t.Fatal("subscription not closed after Run returned")
		}
	}
	cancelSub()

	late, lateCancel := p.Subscribe()
	defer lateCancel()
	_, open := <-late
	assert.False(t, open)
}

func TestSetRangeValidates(t *testing.T) {
	p := newTestPoller(newFakeSource(), Options{})

	_, err := p.SetRange(timerange.Range(5))
	assert.ErrorIs(t, err, timerange.ErrInvalid)

	changed, err := p.SetRange(timerange.Hours24)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = p.SetRange(timerange.Hours48)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, timerange.Hours48, p.Range())
}

func TestRangeChangeIssuesImmediateCycle(t *testing.T) {
	src := newFakeSource()
	p := newTestPoller(src, Options{Interval: time.Hour, Range: timerange.Hours24})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.View().Seq == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := p.SetRange(timerange.Hours48)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.View().Range == timerange.Hours48 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{fixedNow.Unix() - 24*3600, fixedNow.Unix() - 48*3600}, src.sinces())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
