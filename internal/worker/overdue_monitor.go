package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueCounter counts unsettled issues past their due date.
type OverdueCounter interface {
	CountOverdue(ctx context.Context) (int, error)
}

// OverdueGauge receives the latest count.
type OverdueGauge interface {
	SetOverdue(n int)
}

// OverdueMonitor periodically publishes the overdue issue count.
type OverdueMonitor struct {
	counter  OverdueCounter
	gauge    OverdueGauge
	interval time.Duration
	logger   *zap.Logger
}

// NewOverdueMonitor builds a monitor; interval defaults to one minute.
func NewOverdueMonitor(counter OverdueCounter, gauge OverdueGauge, interval time.Duration, logger *zap.Logger) *OverdueMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueMonitor{counter: counter, gauge: gauge, interval: interval, logger: logger}
}

// Run scans immediately and then on every tick until ctx is done.
func (m *OverdueMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *OverdueMonitor) scan(ctx context.Context) {
	n, err := m.counter.CountOverdue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("overdue scan failed", zap.Error(err))
		}
		return
	}
	m.gauge.SetOverdue(n)
	if n > 0 {
		m.logger.Info("overdue issues", zap.Int("count", n))
	}
}
