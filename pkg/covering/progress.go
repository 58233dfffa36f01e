package covering

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Progress observes the transform pass. Advance may be called from several
// goroutines; done is the number of voxels scanned so far out of total.
type Progress interface {
	Advance(done, total int64)
}

// NopProgress discards progress updates
type NopProgress struct{}

func (NopProgress) Advance(done, total int64) {}

// LogProgress logs one line each time another Step percent of the volume
// has been scanned.
type LogProgress struct {
	Step float64
	Log  logrus.FieldLogger

	mu   sync.Mutex
	next float64
}

// NewLogProgress returns a reporter logging every step percent
func NewLogProgress(step float64, log logrus.FieldLogger) *LogProgress {
	if step <= 0 || step > 100 {
		step = 10
	}
	return &LogProgress{Step: step, Log: log, next: step}
}

func (p *LogProgress) Advance(done, total int64) {
	if total <= 0 {
		return
	}
	perc := 100 * float64(done) / float64(total)

	step := p.Step
	if step <= 0 {
		step = 10
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if perc < p.next {
		return
	}
	// Skip thresholds passed in one jump so each line is printed once.
	for p.next <= perc {
		p.next += step
	}
	p.Log.WithField("percent", perc).Infof("Computing covering radius transform: %.1f%% complete", perc)
}
