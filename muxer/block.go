/*
NAME
  block.go

DESCRIPTION
  block.go implements the mux core's per-PID FIFOs: Block is the muxing unit
  MuxGet arbitrates over, chaining via Next to form the TS packet group one
  access unit or table section produced, per spec.md §3's block and §5's
  per-PID FIFO ordering rule.

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
	"time"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/packetizer"
)

// Block is the mux core's muxing unit: one access unit's or one table
// section's worth of already-packetized TS packets, tagged with the
// muxing-order metadata MuxGet arbitrates over. Blocks chain via Next to
// form a per-PID FIFO.
type Block struct {
	PID      uint16
	Packets  []mts.Packet
	DTS      time.Duration // Decode timestamp, converted to wall-clock duration.
	Delay    time.Duration // Buffering delay to apply at the sink.
	Priority packetizer.Priority

	Next *Block
}

// muxingTime is the timestamp MuxGet compares blocks by: max(dts-delay,
// queue.min_muxing), per spec.md §4.3.
func (b *Block) muxingTime(minMuxing time.Duration) time.Duration {
	t := b.DTS - b.Delay
	if minMuxing > t {
		return minMuxing
	}
	return t
}

// queue is one PID's FIFO plus its T-STD shaping state.
type queue struct {
	pid         uint16
	head, tail  *Block
	minMuxing   time.Duration
	peakBitrate int // T-STD peak bitrate for this PID, bits/s; 0 means unconstrained.
	priority    packetizer.Priority
}

func newQueue(pid uint16, peakBitrate int, priority packetizer.Priority) *queue {
	return &queue{pid: pid, peakBitrate: peakBitrate, priority: priority}
}

// push appends b to the tail of the FIFO.
func (q *queue) push(b *Block) {
	if q.tail == nil {
		q.head, q.tail = b, b
		return
	}
	q.tail.Next = b
	q.tail = b
}

// peek returns the head block without removing it.
func (q *queue) peek() (*Block, bool) {
	if q.head == nil {
		return nil, false
	}
	return q.head, true
}

// pop removes and returns the head block.
func (q *queue) pop() (*Block, bool) {
	b, ok := q.peek()
	if !ok {
		return nil, false
	}
	q.head = b.Next
	if q.head == nil {
		q.tail = nil
	}
	b.Next = nil
	return b, true
}

// empty reports whether the FIFO has no blocks.
func (q *queue) empty() bool { return q.head == nil }

// sizeOf returns the total wire size of a block's packets, for T-STD
// shaping and bitrate accounting.
func sizeOf(b *Block) int {
	return len(b.Packets) * mts.PacketSize
}
