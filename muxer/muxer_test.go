/*
NAME
  muxer_test.go

DESCRIPTION
  Integration tests for the mux core's output loop: null-packet padding,
  CBR byte-rate pacing, and the AUTO mode resolution rule, per spec.md
  §4.3 and §8.

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
	"bytes"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/charset"
	"github.com/brinemux/tsmux/packetizer"
	"github.com/brinemux/tsmux/registry"
)

// discardLogger implements logging.Logger by discarding every call.
type discardLogger struct{}

var _ logging.Logger = discardLogger{}

func (discardLogger) Debug(string, ...interface{})   {}
func (discardLogger) Info(string, ...interface{})    {}
func (discardLogger) Warning(string, ...interface{}) {}
func (discardLogger) Error(string, ...interface{})   {}

func newTestStream() *registry.Stream {
	params := registry.NewParameters(registry.ConformanceNone, charset.Default, time.Millisecond, 7)
	return registry.NewStream(1, 1, params)
}

func oneBlock(pid uint16) []mts.Packet {
	return []mts.Packet{{PID: pid, AFC: mts.HasPayload}}
}

func TestNextGroupPadsWithNullPacketsInCAPPEDMode(t *testing.T) {
	mx := newTestMuxer()
	mx.granularity = 4
	mx.resolved = CAPPED
	mx.padding = true

	group := mx.nextGroup()
	if len(group) != mx.granularity {
		t.Fatalf("got %d packets, want %d", len(group), mx.granularity)
	}
	for _, p := range group {
		if p.PID != mts.NullPID {
			t.Fatalf("got PID %#x, want null PID %#x", p.PID, mts.NullPID)
		}
	}
}

func TestNextGroupNoPaddingInVBRMode(t *testing.T) {
	mx := newTestMuxer()
	mx.granularity = 4
	mx.resolved = VBR
	mx.padding = true

	group := mx.nextGroup()
	if len(group) != 0 {
		t.Fatalf("got %d packets, want 0 (VBR must not pad with null packets)", len(group))
	}
}

func TestNextGroupDrainsEligibleBlocks(t *testing.T) {
	mx := newTestMuxer()
	mx.granularity = 2
	mx.resolved = VBR
	mx.lastMuxing = 0

	q := mx.addQueue(0x100, packetizer.PriorityNone, 0)
	q.push(&Block{PID: 0x100, DTS: 0, Packets: oneBlock(0x100)})
	q.push(&Block{PID: 0x100, DTS: 0, Packets: oneBlock(0x100)})

	group := mx.nextGroup()
	if len(group) != 2 {
		t.Fatalf("got %d packets, want 2", len(group))
	}
	if !q.empty() {
		t.Fatal("expected both blocks drained")
	}
}

func TestAdvanceCBRPacingMatchesByteRate(t *testing.T) {
	mx := newTestMuxer()
	mx.stream = newTestStream()
	mx.log = discardLogger{}
	mx.sink = &bytes.Buffer{}
	mx.granularity = 7
	mx.mode = CBR
	mx.resolved = CBR
	mx.muxRate = 7 * mts.PacketSize * 1000 // 1000 groups/s.
	mx.padding = true

	interval, err := mx.advance(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Millisecond
	if interval != want {
		t.Fatalf("got interval %v, want %v", interval, want)
	}
}

func TestAdvanceDeliversToSink(t *testing.T) {
	mx := newTestMuxer()
	mx.stream = newTestStream()
	mx.log = discardLogger{}
	buf := &bytes.Buffer{}
	mx.sink = buf
	mx.granularity = 1
	mx.resolved = VBR

	q := mx.addQueue(0x100, packetizer.PriorityNone, 0)
	q.push(&Block{PID: 0x100, DTS: 0, Packets: oneBlock(0x100)})

	if _, err := mx.advance(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != mts.PacketSize {
		t.Fatalf("got %d bytes written, want %d", buf.Len(), mts.PacketSize)
	}
}

func TestRecomputeModeAutoResolvesVBRWhenBitrateUndeclared(t *testing.T) {
	mx := newTestMuxer()
	mx.stream = newTestStream()
	mx.log = discardLogger{}
	mx.mode = AUTO

	in := &fakeInput{}
	if _, err := mx.stream.AddInput(in); err != nil {
		t.Fatalf("AddInput: %v", err)
	}

	mx.recomputeMode()
	if mx.resolved != VBR {
		t.Fatalf("got %v, want VBR (undeclared bitrate forces VBR under AUTO)", mx.resolved)
	}
}

func TestRecomputeModeAutoResolvesCAPPEDWhenAllDeclared(t *testing.T) {
	mx := newTestMuxer()
	mx.stream = newTestStream()
	mx.log = discardLogger{}
	mx.mode = AUTO

	in := &fakeInput{totalBitrate: 1_000_000, peakBitrate: 1_500_000}
	if _, err := mx.stream.AddInput(in); err != nil {
		t.Fatalf("AddInput: %v", err)
	}

	mx.recomputeMode()
	if mx.resolved != CAPPED {
		t.Fatalf("got %v, want CAPPED (every input declares a bitrate under AUTO)", mx.resolved)
	}
}

// fakeInput is a minimal registry.Entity + esInfo implementation for
// exercising recomputeMode/queueFor without a real packetizer.
type fakeInput struct {
	pid          uint16
	totalBitrate int
	peakBitrate  int
	priority     packetizer.Priority
}

func (f *fakeInput) PID() uint16                     { return f.pid }
func (f *fakeInput) Deleted() bool                   { return false }
func (f *fakeInput) TotalBitrateOf() int              { return f.totalBitrate }
func (f *fakeInput) PeakBitrateOf() int               { return f.peakBitrate }
func (f *fakeInput) PriorityOf() packetizer.Priority  { return f.priority }
