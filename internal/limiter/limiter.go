package limiter

import (
	"runtime"
	"sync"
	"time"
)

// workSlice is the nominal work period between throttle sleeps
const workSlice = 10 * time.Millisecond

// CPULimiter paces purge batch submission so the daemon and the shred
// processes it spawns stay near a CPU budget.
type CPULimiter struct {
	mu         sync.Mutex
	maxPercent float64
	lastSleep  time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter creates a limiter. maxPercent <= 0 or >= 100 disables throttling.
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
		sleep:      time.Sleep,
	}
}

// SleepFor returns the pause that keeps usage at maxPercent over one work slice
func SleepFor(maxPercent float64) time.Duration {
	if maxPercent <= 0 || maxPercent >= 100 {
		return 0
	}
	return time.Duration(float64(workSlice) * ((100.0 - maxPercent) / maxPercent))
}

// Throttle sleeps when at least one work slice has passed since the last pause
func (l *CPULimiter) Throttle() {
	l.mu.Lock()
	d := SleepFor(l.maxPercent)
	due := d > 0 && time.Since(l.lastSleep) > workSlice
	l.mu.Unlock()

	if d == 0 {
		return
	}
	if due {
		l.sleep(d)
		l.mu.Lock()
		l.lastSleep = time.Now()
		l.mu.Unlock()
	}

	runtime.Gosched()
}

// SetMaxPercent updates the maximum CPU percentage
func (l *CPULimiter) SetMaxPercent(maxPercent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPercent = maxPercent
}
