// Package poller runs the acquisition cycle: four concurrent fetches,
// normalization and an atomic swap of the published view.
package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"npbc-dashboard/internal/alerting"
	"npbc-dashboard/internal/device"
	"npbc-dashboard/internal/fetcher"
	"npbc-dashboard/internal/metrics"
	"npbc-dashboard/internal/normalize"
	"npbc-dashboard/internal/scheduler"
	"npbc-dashboard/internal/storage"
	"npbc-dashboard/internal/timerange"
)

// ErrorMessage is shown while the last cycle failed.
const ErrorMessage = "Failed to fetch data from the server."

// Source is the typed controller API.
type Source interface {
	Info(ctx context.Context) ([]device.StatusRecord, bool)
	Stats(ctx context.Context, since int64) ([]device.HistoryRecord, bool)
	ConsumptionStats(ctx context.Context, since int64) ([]device.ConsumptionRecord, bool)
	ConsumptionByMonth(ctx context.Context) ([]device.MonthlyRecord, bool)
}

// Recorder receives cycle metrics.
type Recorder interface {
	CycleFinished(outcome string, elapsed time.Duration)
	DatasetSize(dataset string, n int)
}

// View is the published dashboard state. Slices are replaced on commit and
// never mutated afterwards, so a View may be shared read-only.
type View struct {
	Seq          uint64                        `json:"seq"`
	Range        timerange.Range               `json:"range"`
	Status       *device.StatusRecord          `json:"status"`
	History      []normalize.Sample            `json:"history"`
	Consumption  []normalize.ConsumptionSample `json:"consumption"`
	Monthly      []normalize.MonthlySample     `json:"monthly"`
	Error        bool                          `json:"error"`
	ErrorMessage string                        `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time                     `json:"updatedAt"`
}

// Result summarises one finished cycle.
type Result struct {
	Seq         uint64
	Range       timerange.Range
	Outcome     string
	Unavailable []string
	Err         error
	Elapsed     time.Duration
}

// Options configure a Poller.
type Options struct {
	Interval time.Duration
	Range    timerange.Range
	Location *time.Location
	// JournalRetention prunes journal entries older than this; zero keeps
	// everything.
	JournalRetention time.Duration

	Journal  storage.CycleJournal
	Notifier alerting.Notifier
	Metrics  Recorder
	Now      func() time.Time
}

// Poller owns the published view and the periodic cycle.
type Poller struct {
	source   Source
	sched    *scheduler.Scheduler
	loc      *time.Location
	journal  storage.CycleJournal
	notifier alerting.Notifier
	metrics  Recorder
	now      func() time.Time
	logger   zerolog.Logger

	retention time.Duration

	seq atomic.Uint64

	mu       sync.Mutex
	rng      timerange.Range
	view     View
	applied  uint64
	failures int
	subs     map[int]chan View
	nextSub  int
	stopped  bool
}

// New constructs a poller. The first cycle is issued by Run or RunCycle.
func New(source Source, opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if _, err := timerange.Parse(int(opts.Range)); err != nil {
		opts.Range = timerange.Default
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Poller{
		source:    source,
		sched:     scheduler.New(scheduler.Options{Interval: opts.Interval}, logger),
		loc:       opts.Location,
		journal:   opts.Journal,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		now:       opts.Now,
		logger:    logger.With().Str("component", "poller").Logger(),
		retention: opts.JournalRetention,
		rng:       opts.Range,
		view:      emptyView(opts.Range),
		subs:      make(map[int]chan View),
	}
}

func emptyView(r timerange.Range) View {
	return View{
		Range:       r,
		History:     []normalize.Sample{},
		Consumption: []normalize.ConsumptionSample{},
		Monthly:     []normalize.MonthlySample{},
	}
}

// Run issues a cycle now and then every interval until ctx is cancelled.
// On return every subscription channel is closed.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Str("range", p.Range().String()).Msg("poller started")
	err := p.sched.Run(ctx, func(ctx context.Context, _ time.Time) {
		p.RunCycle(ctx, p.Range())
	})
	p.closeSubscribers()
	p.logger.Info().Msg("poller stopped")
	return err
}

func (p *Poller) closeSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

// Range returns the selected time range.
func (p *Poller) Range() timerange.Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng
}

// SetRange selects a new range. When it differs from the current one the
// pending timer is cancelled and a fresh cycle is issued immediately; cycles
// already in flight keep running. It reports whether the range changed.
func (p *Poller) SetRange(r timerange.Range) (bool, error) {
	if _, err := timerange.Parse(int(r)); err != nil {
		return false, err
	}

	p.mu.Lock()
	if p.rng == r {
		p.mu.Unlock()
		return false, nil
	}
	p.rng = r
	p.mu.Unlock()

	p.logger.Info().Str("range", r.String()).Msg("time range changed")
	p.sched.Restart()
	return true, nil
}

// View returns the published state.
func (p *Poller) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Subscribe registers for every published view. The channel holds only the
// latest view; slow readers skip intermediate ones. The channel is closed by
// cancel or when Run returns, whichever comes first.
func (p *Poller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publishLocked must run with p.mu held so that cancel cannot close a
// channel mid-send.
func (p *Poller) publishLocked(v View) {
	for _, ch := range p.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

type fetched struct {
	status      []device.StatusRecord
	history     []normalize.Sample
	consumption []normalize.ConsumptionSample
	monthly     []normalize.MonthlySample
	unavailable []string
	mu          sync.Mutex
}

func (f *fetched) missing(endpoint string) {
	f.mu.Lock()
	f.unavailable = append(f.unavailable, endpoint)
	f.mu.Unlock()
}

// RunCycle performs one acquisition cycle for range r and commits its result
// unless a newer cycle has already been applied.
func (p *Poller) RunCycle(ctx context.Context, r timerange.Range) Result {
	seq := p.seq.Add(1)
	started := p.now()
	since := r.Boundary(started)
	log := p.logger.With().Uint64("seq", seq).Str("range", r.String()).Logger()
	log.Debug().Int64("since", since).Msg("cycle issued")

	out := &fetched{}
	var g errgroup.Group
	g.Go(guard(fetcher.EndpointInfo, func() {
		records, ok := p.source.Info(ctx)
		if !ok {
			out.missing(fetcher.EndpointInfo)
			records = nil
		}
		out.status = records
	}))
	g.Go(guard(fetcher.EndpointStats, func() {
		records, ok := p.source.Stats(ctx, since)
		if !ok {
			out.missing(fetcher.EndpointStats)
			records = nil
		}
		out.history = normalize.History(records, r, p.loc)
	}))
	g.Go(guard(fetcher.EndpointConsumptionStats, func() {
		records, ok := p.source.ConsumptionStats(ctx, since)
		if !ok {
			out.missing(fetcher.EndpointConsumptionStats)
			records = nil
		}
		out.consumption = normalize.Consumption(records, r, p.loc)
	}))
	g.Go(guard(fetcher.EndpointConsumptionByMonth, func() {
		records, ok := p.source.ConsumptionByMonth(ctx)
		if !ok {
			out.missing(fetcher.EndpointConsumptionByMonth)
			records = nil
		}
		out.monthly = normalize.Monthly(records)
	}))
	err := g.Wait()
	sort.Strings(out.unavailable)

	finished := p.now()
	res := Result{
		Seq:         seq,
		Range:       r,
		Unavailable: out.unavailable,
		Err:         err,
		Elapsed:     finished.Sub(started),
	}

	var (
		note    *alerting.Notification
		history = len(out.history)
	)

	p.mu.Lock()
	switch {
	case seq <= p.applied:
		res.Outcome = metrics.CycleStale
	case err != nil:
		res.Outcome = metrics.CycleFailed
		p.applied = seq
		p.failures++
		p.view.Seq = seq
		p.view.Error = true
		p.view.ErrorMessage = ErrorMessage
		if p.failures == 1 {
			note = &alerting.Notification{Kind: alerting.KindFailure, Message: ErrorMessage, Failures: 1}
		}
		p.publishLocked(p.view)
	default:
		res.Outcome = metrics.CycleCommitted
		p.applied = seq
		if p.failures > 0 {
			note = &alerting.Notification{Kind: alerting.KindRecovery, Failures: p.failures}
		}
		p.failures = 0
		p.view = View{
			Seq:         seq,
			Range:       r,
			Status:      normalize.Status(out.status),
			History:     out.history,
			Consumption: out.consumption,
			Monthly:     out.monthly,
			UpdatedAt:   finished,
		}
		p.publishLocked(p.view)
	}
	p.mu.Unlock()

	switch res.Outcome {
	case metrics.CycleStale:
		log.Debug().Msg("discarding result of superseded cycle")
	case metrics.CycleFailed:
		log.Error().Err(err).Msg("poll cycle failed, keeping previous data")
	default:
		log.Info().
			Int("history", history).
			Int("consumption", len(out.consumption)).
			Int("monthly", len(out.monthly)).
			Strs("unavailable", out.unavailable).
			Dur("elapsed", res.Elapsed).
			Msg("cycle committed")
	}

	if p.metrics != nil {
		p.metrics.CycleFinished(res.Outcome, res.Elapsed)
		if res.Outcome == metrics.CycleCommitted {
			p.metrics.DatasetSize("history", history)
			p.metrics.DatasetSize("consumption", len(out.consumption))
			p.metrics.DatasetSize("monthly", len(out.monthly))
		}
	}

	p.record(ctx, res, started, finished, out, log)

	if note != nil && p.notifier != nil {
		note.At = finished
		note.Seq = seq
		note.RangeHours = r.Hours()
		note.Unavailable = out.unavailable
		if nerr := p.notifier.Notify(ctx, *note); nerr != nil {
			log.Error().Err(nerr).Str("kind", string(note.Kind)).Msg("failed to dispatch notification")
		}
	}

	return res
}

func (p *Poller) record(ctx context.Context, res Result, started, finished time.Time, out *fetched, log zerolog.Logger) {
	if p.journal == nil {
		return
	}
	rec := storage.CycleRecord{
		Seq:              res.Seq,
		RangeHours:       res.Range.Hours(),
		StartedAt:        started,
		FinishedAt:       finished,
		Outcome:          res.Outcome,
		Unavailable:      out.unavailable,
		HistoryCount:     len(out.history),
		ConsumptionCount: len(out.consumption),
		MonthlyCount:     len(out.monthly),
	}
	if res.Err != nil {
		msg := res.Err.Error()
		rec.Error = &msg
	}
	if err := p.journal.RecordCycle(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record cycle")
		return
	}
	if p.retention > 0 {
		if err := p.journal.DeleteCyclesBefore(ctx, finished.Add(-p.retention)); err != nil {
			log.Warn().Err(err).Msg("failed to prune cycle journal")
		}
	}
}

// guard turns a panic in fn into an error so one broken fetch fails the
// cycle instead of the process.
func guard(name string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%s: %v", name, rec)
			}
		}()
		fn()
		return nil
	}
}
