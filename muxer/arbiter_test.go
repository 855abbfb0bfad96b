/*
NAME
  arbiter_test.go

DESCRIPTION
  Tests for MuxGet's priority tie-break and emergency horizon, and the
  late-packet drop/burst/deliver policy, per spec.md §4.3.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package muxer

import (
	"testing"
	"time"

	"github.com/brinemux/tsmux/packetizer"
)

// newTestMuxer returns a Muxer with enough state set to exercise muxGet,
// lateness and nextGroup directly, without going through NewMuxer's option
// pipeline or a populated registry.Stream.
func newTestMuxer() *Muxer {
	return &Muxer{
		stream: newTestStream(),
		log:    discardLogger{},
		queues: make(map[uint16]*queue),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		errs:   make(chan error, 1),
	}
}

func (mx *Muxer) addQueue(pid uint16, priority packetizer.Priority, peak int) *queue {
	q := newQueue(pid, peak, priority)
	mx.queues[pid] = q
	mx.order = append(mx.order, q)
	return q
}

func TestMuxGetPicksEarliestEligible(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = 100 * time.Millisecond

	// Both DTS lie beyond the emergency horizon (lastMuxing + 1ms), so only
	// the muxing time DTS-Delay decides: 10ms for early, 50ms for late.
	early := mx.addQueue(0x100, packetizer.PriorityNone, 0)
	early.push(&Block{PID: 0x100, DTS: 200 * time.Millisecond, Delay: 190 * time.Millisecond})

	late := mx.addQueue(0x101, packetizer.PriorityNone, 0)
	late.push(&Block{PID: 0x101, DTS: 200 * time.Millisecond, Delay: 150 * time.Millisecond})

	q, ok := mx.muxGet()
	if !ok {
		t.Fatal("expected an eligible queue")
	}
	if q.pid != 0x100 {
		t.Fatalf("got pid %x, want 0x100 (earliest muxing time)", q.pid)
	}
}

func TestMuxGetPriorityTieBreak(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = 100 * time.Millisecond

	// All three DTS lie beyond the emergency horizon (lastMuxing + 1ms) and
	// share the muxing time DTS-Delay = 10ms, so only priority decides.
	pcr := mx.addQueue(0x100, packetizer.PriorityPCR, 0)
	pcr.push(&Block{PID: 0x100, DTS: 200 * time.Millisecond, Delay: 190 * time.Millisecond})

	si := mx.addQueue(0x101, packetizer.PrioritySI, 0)
	si.push(&Block{PID: 0x101, DTS: 200 * time.Millisecond, Delay: 190 * time.Millisecond})

	none := mx.addQueue(0x102, packetizer.PriorityNone, 0)
	none.push(&Block{PID: 0x102, DTS: 200 * time.Millisecond, Delay: 190 * time.Millisecond})

	q, ok := mx.muxGet()
	if !ok {
		t.Fatal("expected an eligible queue")
	}
	if q.pid != 0x101 {
		t.Fatalf("got pid %x, want 0x101 (SI beats PCR beats NONE on a tie)", q.pid)
	}
}

func TestMuxGetEmergencyHorizonOverridesPriority(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = 0

	si := mx.addQueue(0x101, packetizer.PrioritySI, 0)
	si.push(&Block{PID: 0x101, DTS: 5 * time.Second})

	urgent := mx.addQueue(0x102, packetizer.PriorityNone, 0)
	urgent.push(&Block{PID: 0x102, DTS: 0})

	q, ok := mx.muxGet()
	if !ok {
		t.Fatal("expected an eligible queue")
	}
	if q.pid != 0x102 {
		t.Fatalf("got pid %x, want 0x102 (within emergency horizon of last_muxing)", q.pid)
	}
}

func TestMuxGetNoEligibleQueue(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = 0

	future := mx.addQueue(0x100, packetizer.PriorityNone, 0)
	future.push(&Block{PID: 0x100, DTS: time.Second})

	if _, ok := mx.muxGet(); ok {
		t.Fatal("expected no eligible queue when every head block is still in the future")
	}
}

func TestLatenessThresholds(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = time.Second

	onTime := &Block{DTS: time.Second}
	if got := mx.lateness(onTime); got != lateNone {
		t.Fatalf("on-time block: got %v, want lateNone", got)
	}

	slightlyLate := &Block{DTS: time.Second - 50*time.Millisecond}
	if got := mx.lateness(slightlyLate); got != lateDeliver {
		t.Fatalf("slightly late block: got %v, want lateDeliver", got)
	}

	veryLate := &Block{DTS: time.Second - MaxDelaying - time.Millisecond}
	if got := mx.lateness(veryLate); got != lateDrop {
		t.Fatalf("very late block: got %v, want lateDrop", got)
	}
}

func TestLatenessDropLateConfig(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = time.Second
	mx.dropLate = true

	b := &Block{DTS: time.Second - time.Millisecond}
	if got := mx.lateness(b); got != lateDrop {
		t.Fatalf("got %v, want lateDrop when dropLate is configured", got)
	}
}

func TestLatenessBurstConfig(t *testing.T) {
	mx := newTestMuxer()
	mx.lastMuxing = time.Second
	mx.burst = true

	b := &Block{DTS: time.Second - time.Millisecond}
	if got := mx.lateness(b); got != lateBurst {
		t.Fatalf("got %v, want lateBurst when burst is configured", got)
	}
}

func TestQueueShapeEnforcesPeakBitrate(t *testing.T) {
	q := newQueue(0x100, 8_000_000, packetizer.PriorityNone) // 1 byte/us.
	q.shape(0, 1000)
	want := time.Millisecond
	if q.minMuxing != want {
		t.Fatalf("got %v, want %v", q.minMuxing, want)
	}
}

func TestQueueShapeUnconstrainedWhenNoPeakBitrate(t *testing.T) {
	q := newQueue(0x100, 0, packetizer.PriorityNone)
	q.shape(5*time.Second, 1000)
	if q.minMuxing != 0 {
		t.Fatalf("got %v, want 0 (unconstrained queue must not shape)", q.minMuxing)
	}
}
