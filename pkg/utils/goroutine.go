// Package utils holds test helpers shared by the channel and client tests.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakDetector compares goroutine counts before and after a workload.
// Idle keep-alive connections hold two goroutines each; close them before
// Check or raise the tolerance.
type LeakDetector struct {
	tb        testing.TB
	baseline  int
	tolerance int
	settle    time.Duration
	samples   int
}

// NewLeakDetector creates a detector reporting to tb
func NewLeakDetector(tb testing.TB) *LeakDetector {
	return &LeakDetector{
		tb:      tb,
		settle:  100 * time.Millisecond,
		samples: 5,
	}
}

// WithTolerance allows n extra goroutines at Check
func (d *LeakDetector) WithTolerance(n int) *LeakDetector {
	d.tolerance = n
	return d
}

// WithSettle sets the wait between samples
func (d *LeakDetector) WithSettle(settle time.Duration) *LeakDetector {
	d.settle = settle
	return d
}

// Start records the baseline
func (d *LeakDetector) Start() *LeakDetector {
	d.baseline = d.lowest()
	return d
}

// Check fails the test when the count grew beyond the tolerance and dumps
// every goroutine stack
func (d *LeakDetector) Check() {
	d.tb.Helper()

	count := d.lowest()
	if leaked := count - d.baseline; leaked > d.tolerance {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		d.tb.Errorf("goroutine leak: %d before, %d after, tolerance %d\n%s", d.baseline, count, d.tolerance, buf[:n])
	}
}

// lowest samples NumGoroutine a few times and keeps the minimum, goroutines
// in teardown drain between samples
func (d *LeakDetector) lowest() int {
	lowest := runtime.NumGoroutine()
	for i := 1; i < d.samples; i++ {
		time.Sleep(d.settle)
		if n := runtime.NumGoroutine(); n < lowest {
			lowest = n
		}
	}
	return lowest
}
