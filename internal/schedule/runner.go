package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AdakHaddad/capdash/internal/model"
	"github.com/AdakHaddad/capdash/internal/state"
)

// Lister fetches schedule definitions from the record store.
type Lister interface {
	ListSchedules(ctx context.Context) ([]model.ScheduleEntry, error)
}

// CommandFunc dispatches a scheduled command (name, duration seconds).
type CommandFunc func(ctx context.Context, name string, durationSec int) error

// Runner keeps a cached copy of the stored schedules fresh and fires the
// irrigation command once per window when a window opens and its gating
// conditions pass.
type Runner struct {
	store    Lister
	st       *state.Store
	dispatch CommandFunc
	loc      *time.Location
	cron     *cron.Cron

	mu      sync.Mutex
	entries []model.ScheduleEntry
	lastErr error
	fired   map[string]bool // entry id + window start, so a window fires once
}

func NewRunner(store Lister, st *state.Store, dispatch CommandFunc, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		store:    store,
		st:       st,
		dispatch: dispatch,
		loc:      loc,
		cron:     cron.New(cron.WithLocation(loc)),
		fired:    make(map[string]bool),
	}
}

// Start begins the refresh and trigger loops. Stop cancels both.
func (r *Runner) Start(ctx context.Context) error {
	r.refresh(ctx)
	if _, err := r.cron.AddFunc("@every 1m", func() { r.refresh(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh job: %w", err)
	}
	if _, err := r.cron.AddFunc("@every 30s", func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule trigger job: %w", err)
	}
	r.cron.Start()
	return nil
}

func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// Next returns the next applicable window given current wall-clock time.
func (r *Runner) Next(now time.Time) (Window, bool) {
	r.mu.Lock()
	entries := r.entries
	r.mu.Unlock()
	return NextWindow(entries, now, r.loc)
}

// LastError exposes the most recent refresh failure for the warning banner.
func (r *Runner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Runner) refresh(ctx context.Context) {
	if r.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	entries, err := r.store.ListSchedules(cctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		// degrade to the cached list, never crash the loop
		r.lastErr = err
		log.Printf("schedule: refresh failed, keeping %d cached entries: %v", len(r.entries), err)
		return
	}
	r.lastErr = nil
	r.entries = entries
}

func (r *Runner) tick(ctx context.Context) {
	now := time.Now().In(r.loc)
	r.mu.Lock()
	entries := r.entries
	r.mu.Unlock()

	win, ok := DueNow(entries, now, r.loc)
	if !ok {
		return
	}
	key := fmt.Sprintf("%d@%s", win.Entry.ID, win.Start.Format(time.RFC3339))
	r.mu.Lock()
	if r.fired[key] {
		r.mu.Unlock()
		return
	}
	r.fired[key] = true
	if len(r.fired) > 1000 {
		r.fired = map[string]bool{key: true}
	}
	r.mu.Unlock()

	if r.st != nil && !GatesPass(win.Entry, r.st.Snapshot().Sensors) {
		log.Printf("schedule: window %q skipped, gating conditions not met", win.Entry.Name)
		return
	}
	if r.dispatch == nil {
		return
	}
	durationSec := win.Entry.DurationMin * 60
	if err := r.dispatch(ctx, string(model.CmdStartIrrigation), durationSec); err != nil {
		log.Printf("schedule: window %q dispatch failed: %v", win.Entry.Name, err)
		return
	}
	log.Printf("schedule: window %q fired for %dmin", win.Entry.Name, win.Entry.DurationMin)
}
