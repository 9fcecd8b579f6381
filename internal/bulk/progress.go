package bulk

import "time"

// Snapshot is one point-in-time view of a running bulk operation.
type Snapshot struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Percent   float64       `json:"percent"`
	Elapsed   time.Duration `json:"elapsed"`
	Rate      float64       `json:"rate"`
	Remaining time.Duration `json:"remaining"`
}

// Progress is synchronous bookkeeping for a bulk run: the caller invokes
// Update after each chunk and the reporter recomputes rate and a linear
// estimate of the time remaining. No goroutines are involved.
type Progress struct {
	total    int
	started  time.Time
	onUpdate func(Snapshot)
}

func NewProgress(total int, onUpdate func(Snapshot)) *Progress {
	return &Progress{
		total:    total,
		started:  time.Now(),
		onUpdate: onUpdate,
	}
}

func (p *Progress) Update(completed, failed int) Snapshot {
	elapsed := time.Since(p.started)

	snap := Snapshot{
		Total:     p.total,
		Completed: completed,
		Failed:    failed,
		Elapsed:   elapsed,
	}

	if p.total > 0 {
		snap.Percent = float64(completed+failed) / float64(p.total) * 100
	}

	done := completed + failed
	if elapsed > 0 && done > 0 {
		snap.Rate = float64(done) / elapsed.Seconds()
		remaining := p.total - done
		if remaining > 0 && snap.Rate > 0 {
			snap.Remaining = time.Duration(float64(remaining)/snap.Rate) * time.Second
		}
	}

	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
	return snap
}
