package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// OutageNotifier is told when the task backend credential stops working.
// The reconciler calls it once per outage, not once per failed sweep.
type OutageNotifier interface {
	NotifyCredentialOutage(ctx context.Context, err error) error
}

// Reconciler runs SweepCompletedTasks periodically. A sweep runs right
// after Start and the timer is re-armed only when a sweep has returned, so
// sweeps never overlap.
type Reconciler struct {
	engine   SyncEngine
	config   ConfigStore
	notifier OutageNotifier
	logger   *slog.Logger

	trigger chan struct{}
	runMu   sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	outage   bool
	lastRun  time.Time
	lastErr  error
	lastRept SweepReport
}

// NewReconciler creates a Reconciler. notifier and logger may be nil.
func NewReconciler(engine SyncEngine, config ConfigStore, notifier OutageNotifier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		engine:   engine,
		config:   config,
		notifier: notifier,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the background loop. It returns an error when the loop is
// already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return errors.New("reconciler already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
	return nil
}

// Stop signals the loop to exit and waits for the running sweep, if any.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger asks the loop for an immediate sweep. Requests made while a sweep
// is running are coalesced into one follow-up sweep.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunOnce performs one sweep synchronously. Concurrent calls are
// serialised.
func (r *Reconciler) RunOnce(ctx context.Context) (report SweepReport, err error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sweep panicked: %v", p)
			r.logger.Error("sweep panicked", "panic", p)
		}
		r.finish(ctx, report, err)
	}()

	r.logger.Info("checking completed tasks", "op", "sweep")
	return r.engine.SweepCompletedTasks(ctx)
}

// LastRun returns the time, report and error of the most recent sweep.
func (r *Reconciler) LastRun() (time.Time, SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastRept, r.lastErr
}

func (r *Reconciler) finish(ctx context.Context, report SweepReport, err error) {
	r.mu.Lock()
	r.lastRun = time.Now()
	r.lastRept = report
	r.lastErr = err
	wasOutage := r.outage
	r.outage = models.IsCredentialError(err)
	startedOutage := r.outage && !wasOutage
	r.mu.Unlock()

	switch {
	case err == nil:
		if wasOutage {
			r.logger.Info("task backend credential working again")
		}
	case models.IsCredentialError(err):
		r.logger.Error("sweep aborted, re-authorization required", "error", err)
	default:
		r.logger.Error("sweep failed", "error", err)
	}

	if startedOutage && r.notifier != nil {
		if nerr := r.notifier.NotifyCredentialOutage(ctx, err); nerr != nil {
			r.logger.Warn("credential outage notification failed", "error", nerr)
		}
	}
}

func (r *Reconciler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	_, _ = r.RunOnce(ctx)

	timer := time.NewTimer(r.config.Current().SweepEvery())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping", "reason", ctx.Err())
			return
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		if ctx.Err() != nil {
			return
		}
		_, _ = r.RunOnce(ctx)
		timer.Reset(r.config.Current().SweepEvery())
	}
}
