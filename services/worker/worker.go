package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal"
	"sjsage522/consoledealworker/internal/classify"
	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/internal/runstate"
	"sjsage522/consoledealworker/internal/source"
	"sjsage522/consoledealworker/internal/storage"
	"sjsage522/consoledealworker/logger"
	werrors "sjsage522/consoledealworker/pkg/errors"
	"sjsage522/consoledealworker/services/publisher"
)

// defaultRetryDelay is how long the loop waits after a failed run
const defaultRetryDelay = time.Minute

// RunResult is the outcome of one run
type RunResult struct {
	Report *classify.Report
	// New holds accepted listings not seen in any earlier run, in input order
	New []listing.ClassifiedListing
}

// Worker handles the fetch, classify, dedup and publish cycle
type Worker struct {
	ctx        context.Context
	sources    []source.Source
	deps       internal.Dependencies
	filters    *config.Filters
	state      *runstate.State
	interval   time.Duration
	retryDelay time.Duration

	settingsMu sync.RWMutex
	settings   config.Settings

	// runMu serializes runs so loop ticks and manual triggers never interleave
	runMu sync.Mutex

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewWorker creates a new worker. interval is used when the settings carry
// no check interval.
func NewWorker(
	ctx context.Context,
	sources []source.Source,
	deps internal.Dependencies,
	filters *config.Filters,
	settings config.Settings,
	state *runstate.State,
	interval time.Duration,
) *Worker {
	if deps.Sink == nil {
		deps.Sink = storage.NopSink{}
	}
	if state == nil {
		state = runstate.New()
	}
	return &Worker{
		ctx:        ctx,
		sources:    sources,
		deps:       deps,
		filters:    filters,
		state:      state,
		interval:   interval,
		retryDelay: defaultRetryDelay,
		settings:   settings.Clone(),
	}
}

// State returns the run-state record
func (w *Worker) State() *runstate.State {
	return w.state
}

// Settings returns a copy of the current settings
func (w *Worker) Settings() config.Settings {
	w.settingsMu.RLock()
	defer w.settingsMu.RUnlock()
	return w.settings.Clone()
}

// UpdateSettings replaces the settings; the next run picks them up
func (w *Worker) UpdateSettings(s config.Settings) {
	w.settingsMu.Lock()
	w.settings = s.Clone()
	w.settingsMu.Unlock()
}

// RunOnce fetches every enabled source, classifies the merged batch and
// publishes the listings that are new. If the seen set cannot be saved the
// run fails and nothing is published.
func (w *Worker) RunOnce(ctx context.Context) (*RunResult, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	log := logger.ForWorker()
	start := time.Now()
	settings := w.Settings()

	pipeline, err := classify.New(w.filters, classify.OptionsFromSettings(settings, w.deps.Image))
	if err != nil {
		return nil, werrors.NewConfiguration("compile filters", err)
	}

	w.state.BeginCheck()
	w.state.Log(runstate.ActivityInfo, "Starting scan...")

	raws := w.fetchAll(ctx, settings)
	report := pipeline.ClassifyBatch(ctx, raws)
	for _, line := range report.RejectionLog {
		log.Debug().Msg(line)
	}

	fresh := w.selectNew(report.AcceptedListings())
	ids := make([]string, len(fresh))
	for i, c := range fresh {
		ids[i] = c.Identity()
	}
	if err := w.deps.Store.Commit(ctx, ids); err != nil {
		w.state.Fail(fmt.Sprintf("Error: %v", err))
		return &RunResult{Report: report}, err
	}

	w.publish(fresh)
	if err := w.deps.Sink.Save(ctx, fresh); err != nil {
		log.Warn().Err(err).Msg("Failed to save listings")
	}

	w.state.RecordRun(len(raws), len(fresh))
	if len(fresh) > 0 {
		w.state.Log(runstate.ActivitySuccess, fmt.Sprintf("Found %d match(es)!", len(fresh)))
	} else {
		w.state.Log(runstate.ActivityInfo, "Scan complete. No matches found.")
	}

	log.Info().
		Int("fetched", len(raws)).
		Int("accepted", report.Accepted).
		Int("new", len(fresh)).
		Dur("elapsed", time.Since(start)).
		Msg("Run complete")

	return &RunResult{Report: report, New: fresh}, nil
}

// fetchAll runs the enabled sources in parallel and merges their listings in
// source order
func (w *Worker) fetchAll(ctx context.Context, settings config.Settings) []listing.RawListing {
	q := source.Query{
		ZipCode:      settings.ZipCode,
		Distance:     settings.Distance,
		Descriptions: settings.DescriptionScan,
	}

	results := make([][]listing.RawListing, len(w.sources))
	var wg sync.WaitGroup
	for i, s := range w.sources {
		if !settings.PlatformEnabled(strings.ToLower(s.GetPlatform())) {
			continue
		}
		wg.Add(1)
		go func(i int, s source.Source) {
			defer wg.Done()
			results[i] = w.fetchSource(ctx, s, q)
		}(i, s)
	}
	wg.Wait()

	var merged []listing.RawListing
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

func (w *Worker) fetchSource(ctx context.Context, s source.Source, q source.Query) []listing.RawListing {
	log := logger.ForSource(s.GetName())
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Source panicked")
		}
	}()

	items, err := s.FetchListings(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch listings")
		w.state.Log(runstate.ActivityError, fmt.Sprintf("%s: %v", s.GetPlatform(), err))
		return nil
	}
	log.Info().Int("count", len(items)).Msg("Fetched listings")
	return items
}

// selectNew drops listings already in the seen set and repeats within the batch
func (w *Worker) selectNew(accepted []listing.ClassifiedListing) []listing.ClassifiedListing {
	batch := make(map[string]bool, len(accepted))
	fresh := make([]listing.ClassifiedListing, 0, len(accepted))
	for _, c := range accepted {
		id := c.Identity()
		if batch[id] || !w.deps.Store.IsNew(id) {
			continue
		}
		batch[id] = true
		fresh = append(fresh, c)
	}
	return fresh
}

func (w *Worker) publish(fresh []listing.ClassifiedListing) {
	if w.deps.Publisher == nil || len(fresh) == 0 {
		return
	}
	log := logger.ForPublisher()

	for _, c := range fresh {
		data, err := json.Marshal(listing.NewAlert(c))
		if err != nil {
			log.Error().Err(err).Str("link", c.Link).Msg("Failed to encode alert")
			continue
		}
		if err := w.deps.Publisher.Publish(publisher.AlertKey, data); err != nil {
			log.Error().Err(err).Str("link", c.Link).Msg("Failed to publish alert")
		}
	}

	// Trim all streams after publishing
	if err := w.deps.Publisher.TrimStreams(); err != nil {
		log.Warn().Err(err).Msg("Failed to trim streams")
	}
}

// Start launches the periodic loop. It returns false if the loop is already
// running.
func (w *Worker) Start() bool {
	w.loopMu.Lock()
	defer w.loopMu.Unlock()
	if w.loopCancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.loopCancel = cancel
	w.loopDone = make(chan struct{})
	w.state.SetRunning(true)
	w.state.Log(runstate.ActivitySuccess, "Scraper started")

	go w.loop(ctx, w.loopDone)
	return true
}

// Stop ends the periodic loop and waits for an in-flight run to finish
func (w *Worker) Stop() {
	w.loopMu.Lock()
	cancel, done := w.loopCancel, w.loopDone
	w.loopCancel, w.loopDone = nil, nil
	w.loopMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	w.state.SetRunning(false)
	w.state.Log(runstate.ActivityInfo, "Scraper stopped")
}

// Trigger runs once in the background
func (w *Worker) Trigger() {
	go func() {
		if _, err := w.RunOnce(w.ctx); err != nil {
			logger.ForWorker().Error().Err(err).Msg("Triggered run failed")
		}
	}()
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := w.nextInterval()
		if _, err := w.RunOnce(ctx); err != nil {
			logger.ForWorker().Error().Err(err).Msg("Run failed")
			wait = w.retryDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (w *Worker) nextInterval() time.Duration {
	if m := w.Settings().CheckInterval; m > 0 {
		return time.Duration(m) * time.Minute
	}
	return w.interval
}
