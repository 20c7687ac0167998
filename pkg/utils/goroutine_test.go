package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(string, ...any) { r.failed = true }

func TestLeakDetectorPassesFinishedWork(t *testing.T) {
	detector := NewLeakDetector(t).WithSettle(10 * time.Millisecond).Start()

	done := make(chan struct{})
	go func() { close(done) }()
	<-done

	detector.Check()
}

func TestLeakDetectorReportsBlockedGoroutine(t *testing.T) {
	tb := &recordingTB{TB: t}
	detector := NewLeakDetector(tb).WithSettle(10 * time.Millisecond).Start()

	stop := make(chan struct{})
	defer close(stop)
	go func() { <-stop }()

	detector.Check()
	assert.True(t, tb.failed)
}

func TestLeakDetectorTolerance(t *testing.T) {
	tb := &recordingTB{TB: t}
	detector := NewLeakDetector(tb).WithSettle(10 * time.Millisecond).WithTolerance(1).Start()

	stop := make(chan struct{})
	defer close(stop)
	go func() { <-stop }()

	detector.Check()
	assert.False(t, tb.failed)
}
