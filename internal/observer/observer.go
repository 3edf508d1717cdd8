// Package observer implements the §5 "optional auxiliary observer task": a
// background sampler that reads process-level RSS and CPU counters on a
// fixed schedule while a chainhash_timed run is in flight, purely for
// reporting. It never touches core state, mirroring scheduler/cron.go's
// cron-driven background job shape and hardware_service.go's gopsutil
// sampling, narrowed from disk/network info to the running process itself.
package observer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// Sample is one point-in-time reading of this process's resource usage.
type Sample struct {
	Timestamp  time.Time
	RSSBytes   uint64
	CPUPercent float64
}

// Observer samples the current process on a cron schedule and accumulates
// the readings in memory for the caller to inspect after a long-running
// chainhash_timed call completes.
type Observer struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	proc    *process.Process
	runner  *cron.Cron
	entryID cron.EntryID
	samples []Sample
}

// New returns an Observer bound to the current OS process.
func New(logger *logrus.Logger) (*Observer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("observer: resolve current process: %w", err)
	}
	return &Observer{logger: logger, proc: proc}, nil
}

// everyInterval is a cron.Schedule that fires every d. Unlike cron's own
// "@every" spec, it does not round sub-second intervals up to one second.
type everyInterval time.Duration

func (d everyInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// Start begins sampling every interval through a cron runner.
// Start is idempotent: calling it again first stops the previous schedule.
func (o *Observer) Start(interval time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.runner != nil {
		ctx := o.runner.Stop()
		<-ctx.Done()
	}

	o.runner = cron.New()
	o.entryID = o.runner.Schedule(everyInterval(interval), cron.FuncJob(o.sampleOnce))
	o.runner.Start()

	o.logger.WithField("interval", interval.String()).Info("observer: started process sampling")
	return nil
}

// Stop halts sampling; accumulated samples remain available via Samples.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runner == nil {
		return
	}
	ctx := o.runner.Stop()
	<-ctx.Done()
	o.runner = nil
}

func (o *Observer) sampleOnce() {
	rss := uint64(0)
	if mem, err := o.proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	} else if err != nil {
		o.logger.WithError(err).Warn("observer: failed to read memory info")
	}

	cpuPct := 0.0
	if pct, err := o.proc.CPUPercent(); err == nil {
		cpuPct = pct
	} else {
		o.logger.WithError(err).Warn("observer: failed to read cpu percent")
	}

	o.mu.Lock()
	o.samples = append(o.samples, Sample{Timestamp: time.Now(), RSSBytes: rss, CPUPercent: cpuPct})
	o.mu.Unlock()
}

// Samples returns a copy of every reading collected so far.
func (o *Observer) Samples() []Sample {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Sample, len(o.samples))
	copy(out, o.samples)
	return out
}
