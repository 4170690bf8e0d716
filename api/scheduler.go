/*
scheduler.go - Automated run scheduler

PURPOSE:
  Periodically recomputes every stored scheme against the current date.
  Incentive data arrives continuously (new uploads replace datasets), so
  a standing recompute keeps run results fresh without manual triggering.
  Every recompute is a new append-only run; nothing is overwritten.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Recomputes each scheme that has all of its datasets uploaded
  - Skips schemes whose datasets are missing or whose config fails
    validation (both are logged, neither stops the sweep)

CONFIGURATION:
  - CheckInterval: How often to recompute (default: 24 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRunScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ExecuteRun endpoint (manual trigger)
  - engine/run.go: The computation itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/store/sqlite"
)

// RunScheduler recomputes stored schemes on a fixed interval.
type RunScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a new scheduler.
func NewRunScheduler(store *sqlite.Store, handler *Handler) *RunScheduler {
	return &RunScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Handler.Logger.Infof("scheduler", "disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Handler.Logger.Infof("scheduler", "started with check interval %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Handler.Logger.Infof("scheduler", "stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	for {
		select {
		case <-rs.ticker.C:
			rs.recomputeAll()
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (rs *RunScheduler) RunNow() {
	rs.recomputeAll()
}

// recomputeAll executes every runnable scheme as of today.
func (rs *RunScheduler) recomputeAll() {
	ctx := context.Background()
	log := rs.Handler.Logger
	asOf := time.Now().UTC().Format("2006-01-02")

	schemes, err := rs.Store.ListSchemes(ctx)
	if err != nil {
		log.Errorf("scheduler", "failed to list schemes: %v", err)
		return
	}

	processed := 0
	skipped := 0

	for _, rec := range schemes {
		ok, err := rs.recomputeScheme(ctx, rec, asOf)
		if err != nil {
			log.Warnf("scheduler", "scheme %s (%s): %v", rec.ID, rec.Name, err)
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}
		processed++
	}

	if processed > 0 || skipped > 0 {
		log.Infof("scheduler", "sweep completed: %d processed, %d skipped", processed, skipped)
	}
}

// recomputeScheme runs one scheme. Returns false without error when the
// scheme is not runnable yet (datasets missing).
func (rs *RunScheduler) recomputeScheme(ctx context.Context, rec sqlite.SchemeRecord, asOf string) (bool, error) {
	scheme, err := rs.Handler.SchemeFactory.ParseScheme(rec.ConfigJSON)
	if err != nil {
		return false, err
	}

	input := engine.RunInput{
		Scheme:   scheme,
		Datasets: make(map[string][]engine.Record),
		AsOfDate: asOf,
	}

	for _, name := range datasetNames(scheme) {
		ds, err := rs.Store.GetDatasetByName(ctx, name)
		if err != nil {
			return false, err
		}
		if ds == nil {
			return false, nil // not runnable yet
		}
		input.Datasets[name] = ds.Rows
	}

	if scheme.CreditHierarchyFile != "" {
		ds, err := rs.Store.GetDatasetByName(ctx, scheme.CreditHierarchyFile)
		if err != nil {
			return false, err
		}
		if ds != nil {
			input.Hierarchy = ingest.HierarchyFromRecords(ds.Rows)
		}
	}

	result, err := engine.New(rs.Handler.Logger).Run(input)
	if err != nil {
		return false, err
	}

	return true, rs.Store.SaveRun(ctx, sqlite.RunRecord{
		ID:        uuid.New().String(),
		SchemeID:  rec.ID,
		AsOfDate:  asOf,
		Result:    result,
		CreatedAt: time.Now(),
	})
}
