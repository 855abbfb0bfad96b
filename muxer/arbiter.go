/*
NAME
  arbiter.go

DESCRIPTION
  arbiter.go implements MuxGet: choosing, among the queues with an eligible
  head block, the one due soonest with SI > PCR > NONE priority tie-break
  and an emergency horizon override, plus the late-packet drop/burst/delay
  policy and T-STD per-queue peak-bitrate shaping, all per spec.md §4.3,
  grounded in original_source/modules/stream_out/ts/mux.c's MuxGet/
  MuxCheckLate.

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

import "time"

// lateAction is the outcome of applying the late-packet policy to a chosen
// block.
type lateAction int

const (
	lateNone lateAction = iota
	lateDrop
	lateBurst
	lateDeliver
)

// muxGet selects the queue with the smallest eligible muxing timestamp,
// breaking ties by priority (SI > PCR > NONE), and reports whether any
// queue was chosen. A head block whose DTS is within one packet interval of
// lastMuxing (the emergency horizon) is returned at once, ahead of the
// muxing-time and priority rules. It does not mutate mx's state; callers
// pop the chosen queue's head themselves.
func (mx *Muxer) muxGet() (*queue, bool) {
	var best *queue
	var bestTime time.Duration
	horizon := mx.lastMuxing + mx.packetInterval()

	for _, q := range mx.order {
		head, ok := q.peek()
		if !ok {
			continue
		}
		mt := head.muxingTime(q.minMuxing)

		// Emergency horizon: return immediately regardless of priority.
		if head.DTS <= horizon {
			return q, true
		}

		if mt > mx.lastMuxing {
			continue
		}
		if best == nil || mt < bestTime || (mt == bestTime && q.priority > best.priority) {
			best, bestTime = q, mt
		}
	}
	return best, best != nil
}

// lateness classifies a chosen block against the late-packet policy, per
// spec.md §4.3: dropped if behind by more than MaxDelaying or drop is
// configured; burst resets last_muxing to the block's DTS; otherwise the
// block is delivered with implicit delay.
func (mx *Muxer) lateness(b *Block) lateAction {
	if b.DTS >= mx.lastMuxing {
		return lateNone
	}
	behind := mx.lastMuxing - b.DTS
	if behind > MaxDelaying || mx.dropLate {
		return lateDrop
	}
	if mx.burst {
		return lateBurst
	}
	return lateDeliver
}

// shape updates q's T-STD min_muxing after emitting a block of the given
// wire size, enforcing q's peak bitrate.
func (q *queue) shape(emittedAt time.Duration, sizeBytes int) {
	if q.peakBitrate <= 0 {
		return
	}
	q.minMuxing = emittedAt + time.Duration(int64(sizeBytes)*8*int64(time.Second)/int64(q.peakBitrate))
}
