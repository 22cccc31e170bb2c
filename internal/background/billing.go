package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

// PlanChangeApplier applies scheduled plan changes that have reached their
// effective date. Implemented by the membership service.
type PlanChangeApplier interface {
	ApplyDuePlanChanges(ctx context.Context, now time.Time) (int, error)
}

type BillingConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

var (
	metricsOnce       sync.Once
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	changesApplied    prometheus.Counter
	lastSuccessClocks prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ott_membership",
			Subsystem: "billing",
			Name:      "runs_total",
			Help:      "Total billing job executions",
		}, []string{"status"})

		runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ott_membership",
			Subsystem: "billing",
			Name:      "run_duration_seconds",
			Help:      "Duration of billing job executions",
			Buckets:   prometheus.DefBuckets,
		})

		changesApplied = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "ott_membership",
			Subsystem: "billing",
			Name:      "plan_changes_applied_total",
			Help:      "Total scheduled plan changes applied by the billing job",
		})

		lastSuccessClocks = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "ott_membership",
			Subsystem: "billing",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last successful billing job execution",
		})
	})
}

// BillingWorker periodically applies scheduled plan changes whose effective
// date has passed. One run at a time; a failed run is retried with backoff
// before the worker goes back to sleep until the next tick.
type BillingWorker struct {
	applier PlanChangeApplier
	config  BillingConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

func NewBillingWorker(applier PlanChangeApplier, cfg BillingConfig) *BillingWorker {
	initMetrics()

	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}

	return &BillingWorker{applier: applier, config: cfg}
}

func (w *BillingWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.applier == nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true
	w.done = make(chan struct{})

	go w.loop(ctx)

	logger.Info("Billing worker started", map[string]interface{}{
		"interval": w.config.Interval.String(),
	})
}

func (w *BillingWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runWithRetry(ctx)
		}
	}
}

func (w *BillingWorker) runWithRetry(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := w.run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		if attempt > w.config.MaxRetries {
			logger.Error(err, "Billing run failed, giving up until next tick", map[string]interface{}{
				"attempt": attempt,
			})
			return
		}

		logger.Warn("Billing run failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})

		timer := time.NewTimer(w.config.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (w *BillingWorker) run(ctx context.Context) (runErr error) {
	start := time.Now()
	status := "success"

	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			status = "failure"
		}
		runDuration.Observe(time.Since(start).Seconds())
		runsTotal.WithLabelValues(status).Inc()
		if status == "success" {
			lastSuccessClocks.Set(float64(time.Now().Unix()))
		}
	}()

	applied, err := w.applier.ApplyDuePlanChanges(runCtx, time.Now())
	if applied > 0 {
		changesApplied.Add(float64(applied))
		logger.Info("Billing run applied scheduled plan changes", map[string]interface{}{
			"applied": applied,
		})
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		} else {
			status = "failure"
		}
		return err
	}

	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish, bounded by
// the caller's context.
func (w *BillingWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.started = false
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
