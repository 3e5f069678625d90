// Package profiler tracks timing of capture operations (capture, screenshot,
// composite, encode, save) and reports them through the structured logger.
package profiler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxSamples is the number of durations kept per operation.
const DefaultMaxSamples = 600

// Profiler collects operation timings. It is safe for concurrent use; a nil
// *Profiler is valid and records nothing.
type Profiler struct {
	mu             sync.RWMutex
	startTime      time.Time
	maxSamples     int
	operationTimes map[string]*TimeTracker
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one operation's timings. Avg, Min and Max
// cover the retained sample window; Count is the lifetime total.
type OperationStats struct {
	Name  string
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// New creates a profiler keeping at most maxSamples durations per operation
// (DefaultMaxSamples when maxSamples <= 0).
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		startTime:      time.Now(),
		maxSamples:     maxSamples,
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds a completed operation duration.
func (p *Profiler) Record(name string, duration time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{name: name}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	// Min and max follow the retained window.
	tracker.minTime, tracker.maxTime = tracker.durations[0], tracker.durations[0]
	for _, d := range tracker.durations[1:] {
		if d < tracker.minTime {
			tracker.minTime = d
		}
		if d > tracker.maxTime {
			tracker.maxTime = d
		}
	}
}

// Stats returns the statistics for one operation.
func (p *Profiler) Stats(name string) (OperationStats, bool) {
	if p == nil {
		return OperationStats{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.operationTimes[name]
	if !ok || len(tracker.durations) == 0 {
		return OperationStats{}, false
	}
	return tracker.snapshot(), true
}

// Operations returns statistics for all operations sorted by name.
func (p *Profiler) Operations() []OperationStats {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]OperationStats, 0, len(p.operationTimes))
	for _, tracker := range p.operationTimes {
		if len(tracker.durations) > 0 {
			out = append(out, tracker.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *TimeTracker) snapshot() OperationStats {
	return OperationStats{
		Name:  t.name,
		Avg:   t.totalTime / time.Duration(len(t.durations)),
		Min:   t.minTime,
		Max:   t.maxTime,
		Count: t.count,
	}
}

// Report logs uptime, memory usage and the timing of every operation.
func (p *Profiler) Report(logger *zap.Logger) {
	if p == nil || logger == nil {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.RLock()
	uptime := time.Since(p.startTime)
	p.mu.RUnlock()

	logger.Info("profiler status",
		zap.Duration("uptime", uptime.Truncate(time.Millisecond)),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.String("heap_alloc", formatBytes(mem.HeapAlloc)),
		zap.String("sys", formatBytes(mem.Sys)),
		zap.Uint32("gc_cycles", mem.NumGC),
	)

	for _, op := range p.Operations() {
		logger.Info("operation timing",
			zap.String("operation", op.Name),
			zap.Duration("avg", op.Avg.Truncate(time.Microsecond)),
			zap.Duration("min", op.Min.Truncate(time.Microsecond)),
			zap.Duration("max", op.Max.Truncate(time.Microsecond)),
			zap.Int64("count", op.Count),
		)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
