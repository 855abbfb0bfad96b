/*
NAME
  muxer.go

DESCRIPTION
  muxer.go implements the mux core: the stream-version-reactive bitrate and
  mode recomputation, the synchronous mux loop and the asynchronous pump,
  each driving MuxGet/the late-packet policy/T-STD shaping/PCR stamping/RTP
  wrapping to turn per-PID FIFOs of Blocks into an output byte stream, per
  spec.md §4.3 and §5, grounded in original_source/modules/stream_out/ts/
  mux.c (MuxGet, MuxCheckLate, MuxCheckAsync, MuxValidateParams) and in
  revid.Revid's goroutine/kick-channel/stop-channel idiom for the
  synchronous loop.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package muxer implements the mux core: per-PID FIFO arbitration, T-STD
// shaping, PCR stamping and RTP wrapping over the PSI/SI table packetizers
// and per-input packetizers, in both a synchronous (networked, wall-clock
// paced) and asynchronous (file, input-driven) regime.
package muxer

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/packetizer"
	"github.com/brinemux/tsmux/protocol/rtp"
	"github.com/brinemux/tsmux/registry"
	"github.com/brinemux/tsmux/table"
)

// esInfo mirrors table's locally declared esInfo interface, read here only
// for TotalBitrateOf/PeakBitrateOf/PriorityOf, which Base also implements.
type esInfo interface {
	TotalBitrateOf() int
	PeakBitrateOf() int
	PriorityOf() packetizer.Priority
}

// Muxer is the mux core for one registry.Stream. Construct with NewMuxer;
// drive it with Enqueue (per access unit) and either RunSync (networked
// output) or nothing further (asynchronous: Enqueue itself pumps).
type Muxer struct {
	stream *registry.Stream
	sink   io.Writer
	log    logging.Logger

	mode         Mode
	resolved     Mode
	muxRate      int
	granularity  int
	padding      bool
	dropLate     bool
	burst        bool
	asyncDelay   time.Duration
	rtpEnabled   bool
	rtpSSRC      uint32
	async        bool

	mu          sync.Mutex
	queues      map[uint16]*queue
	order       []*queue
	lastMuxing  time.Duration
	cbr         cbrClock
	seenVersion uint64

	rtp *rtp.Encoder

	kick chan struct{}
	stop chan struct{}
	errs chan error
}

// NewMuxer returns a Muxer for stream, writing its output to sink.
// Synchronous use calls RunSync in a goroutine; asynchronous use simply
// calls Enqueue as access units arrive (see WithGranularity(1)).
func NewMuxer(stream *registry.Stream, sink io.Writer, log logging.Logger, opts ...Option) (*Muxer, error) {
	mx := &Muxer{
		stream:      stream,
		sink:        sink,
		log:         log,
		granularity: 7,
		padding:     true,
		queues:      make(map[uint16]*queue),
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		errs:        make(chan error, 1),
	}
	for _, o := range opts {
		if err := o(mx); err != nil {
			return nil, err
		}
	}
	if mx.rtpEnabled {
		mx.rtp = rtp.NewPCREncoder(sink)
		if mx.rtpSSRC != 0 {
			mx.rtp.SetSSRC(mx.rtpSSRC)
		}
	}
	return mx, nil
}

// Errs returns the channel internal mux faults are reported on, read by a
// dedicated goroutine exactly as revid.Revid.err/handleErrors does.
func (mx *Muxer) Errs() <-chan error { return mx.errs }

// packetInterval is the wall time one TS packet occupies at the current
// rate, used for the emergency muxGet horizon and the synchronous loop's
// max_prepare wait.
func (mx *Muxer) packetInterval() time.Duration {
	return mx.stream.Params.PacketInterval
}

// queueFor returns (creating if absent) the FIFO for pid, reading its
// priority and peak bitrate from the registry entity that owns pid.
func (mx *Muxer) queueFor(pid uint16) *queue {
	if q, ok := mx.queues[pid]; ok {
		return q
	}
	var priority packetizer.Priority
	var peak int
	for _, e := range mx.stream.Inputs() {
		if e.PID() != pid {
			continue
		}
		if info, ok := e.(esInfo); ok {
			priority, peak = info.PriorityOf(), info.PeakBitrateOf()
		}
	}
	for _, e := range mx.stream.Tables() {
		if e.PID() == pid {
			priority = packetizer.PrioritySI
		}
	}
	q := newQueue(pid, peak, priority)
	mx.queues[pid] = q
	mx.order = append(mx.order, q)
	return q
}

// ptsToDuration converts a 90kHz PTS/DTS value to a wall-clock duration.
func ptsToDuration(ts uint64) time.Duration {
	return time.Duration(ts) * time.Second / 90000
}

// Enqueue packetizes au via in (the per-input packetizer already registered
// on pid) and pushes the resulting block onto pid's FIFO. In asynchronous
// mode it then drains via pump; in synchronous mode it wakes the mux loop.
func (mx *Muxer) Enqueue(pid uint16, in packetizer.Input, au packetizer.AccessUnit) error {
	pkts, err := in.Send(au)
	if err != nil {
		return err
	}
	if pkts == nil {
		return nil
	}
	var priority packetizer.Priority
	if info, ok := in.(esInfo); ok {
		priority = info.PriorityOf()
	}
	b := &Block{
		PID:      pid,
		Packets:  pkts,
		DTS:      ptsToDuration(au.DTS),
		Delay:    au.Delay,
		Priority: priority,
	}

	mx.mu.Lock()
	q := mx.queueFor(pid)
	q.push(b)
	mx.mu.Unlock()

	if mx.async {
		mx.pump()
		return nil
	}
	select {
	case mx.kick <- struct{}{}:
	default:
	}
	return nil
}

// pollTables calls Send on every registered table due at now, pushing any
// produced sections onto their own SI-priority queues.
func (mx *Muxer) pollTables(now time.Duration) {
	for _, e := range mx.stream.Tables() {
		t, ok := e.(table.Table)
		if !ok {
			continue
		}
		pkts, ok := t.Send(now)
		if !ok || pkts == nil {
			continue
		}
		q := mx.queueFor(t.PID())
		q.push(&Block{PID: t.PID(), Packets: pkts, DTS: now + mx.packetInterval(), Delay: 2 * mx.packetInterval(), Priority: packetizer.PrioritySI})
	}
}

// recomputeMode reacts to a stream_version move: re-derives total bitrate
// across inputs and re-chooses mode if AUTO, per spec.md §4.3's
// stream-version reaction rule. It does not change the packet interval,
// which packetInterval keeps reading from the stream's Parameters.
func (mx *Muxer) recomputeMode() {
	total := 0
	allDeclared := true
	for _, e := range mx.stream.Inputs() {
		info, ok := e.(esInfo)
		if !ok {
			continue
		}
		br := info.TotalBitrateOf()
		if br == 0 {
			allDeclared = false
			continue
		}
		total += br
	}

	mx.resolved = mx.mode
	if mx.mode == AUTO {
		if allDeclared {
			mx.resolved = CAPPED
		} else {
			mx.resolved = VBR
		}
	}
	mx.log.Debug("mux mode recomputed", "mode", mx.resolved, "total_bitrate", total)
}

// maybeRecompute checks the stream's version counter and recomputes mode
// if it moved since the last check.
func (mx *Muxer) maybeRecompute() {
	v := mx.stream.StreamVersion()
	if v == mx.seenVersion {
		return
	}
	mx.seenVersion = v
	mx.recomputeMode()
}

// nextGroup assembles one granularity group: up to mx.granularity packets,
// chosen by muxGet/late policy/T-STD shaping, padded with null packets in
// CBR/CAPPED when no queue has an eligible block.
func (mx *Muxer) nextGroup() []mts.Packet {
	var out []mts.Packet
	for len(out) < mx.granularity {
		q, ok := mx.muxGet()
		if !ok {
			if mx.resolved == VBR || !mx.padding {
				break
			}
			out = append(out, mts.NullPacket())
			continue
		}
		b, _ := q.pop()
		switch mx.lateness(b) {
		case lateDrop:
			mx.log.Warning("dropped late block", "pid", b.PID, "behind", mx.lastMuxing-b.DTS)
			continue
		case lateBurst:
			mx.lastMuxing = b.DTS
		}
		out = append(out, b.Packets...)
		q.shape(mx.lastMuxing, sizeOf(b))
		if len(out) >= mx.granularity {
			out = out[:mx.granularity]
		}
	}
	return out
}

// advance produces, stamps and delivers one granularity group at wall time
// now, advancing mx.lastMuxing per the configured mode, and returns the
// wall-clock interval until the next group is due.
func (mx *Muxer) advance(now time.Duration) (time.Duration, error) {
	mx.maybeRecompute()
	mx.pollTables(now)

	group := mx.nextGroup()
	if len(group) == 0 {
		return mx.packetInterval(), nil
	}

	stampPCR(group, mx.lastMuxing, &mx.cbr, mx.muxRate)

	if err := mx.deliver(group); err != nil {
		return 0, err
	}

	switch mx.resolved {
	case CBR, CAPPED:
		groupBytes := len(group) * mts.PacketSize
		interval := mx.cbr.next(groupBytes, mx.muxRate)
		mx.lastMuxing += interval
		return interval, nil
	default:
		mx.lastMuxing = now
		return mx.packetInterval(), nil
	}
}

// deliver writes a granularity group to the sink, wrapping it in RTP if
// enabled.
func (mx *Muxer) deliver(group []mts.Packet) error {
	buf := make([]byte, 0, len(group)*mts.PacketSize)
	for i := range group {
		buf = append(buf, group[i].Bytes(nil)...)
	}
	if mx.rtpEnabled {
		ts := uint32(pcrDate(mx.lastMuxing, &mx.cbr, mx.muxRate) / 300)
		return mx.rtp.EncodeAt(buf, ts)
	}
	_, err := mx.sink.Write(buf)
	return err
}

// RunSync runs the synchronous mux loop until Stop is called, delivering
// wall-clock-paced granularity groups to the sink. Intended to be called in
// its own goroutine.
func (mx *Muxer) RunSync() {
	timer := time.NewTimer(mx.packetInterval())
	defer timer.Stop()
	start := time.Now()
	now := func() time.Duration { return time.Since(start) }

	for {
		select {
		case <-mx.stop:
			return
		case <-mx.kick:
		case <-timer.C:
		}

		mx.mu.Lock()
		interval, err := mx.advance(now())
		mx.mu.Unlock()
		if err != nil {
			select {
			case mx.errs <- err:
			default:
			}
		}
		if interval <= 0 {
			interval = time.Millisecond
		}
		timer.Reset(interval)
	}
}

// pump advances one granularity group at a time, to the time checkAsync
// returns, for as long as checkAsync reports a queued block, per spec.md
// §5's asynchronous regime.
func (mx *Muxer) pump() {
	for {
		mx.mu.Lock()
		due, ready := mx.checkAsync()
		if !ready {
			mx.mu.Unlock()
			return
		}
		_, err := mx.advance(due)
		mx.mu.Unlock()
		if err != nil {
			select {
			case mx.errs <- err:
			default:
			}
			return
		}
	}
}

// checkAsync returns the earliest muxing time across all queues and
// whether any queue has a block at all. With no wall clock to wait on,
// asynchronous mode is always ready to advance to the next enqueued
// deadline; asyncDelay only holds the pump back from jumping straight to a
// far-future block when an earlier-PID block may still arrive, by capping
// the returned time at lastMuxing + asyncDelay.
func (mx *Muxer) checkAsync() (time.Duration, bool) {
	var earliest time.Duration
	found := false
	for _, q := range mx.order {
		head, ok := q.peek()
		if !ok {
			continue
		}
		mt := head.muxingTime(q.minMuxing)
		if !found || mt < earliest {
			earliest, found = mt, true
		}
	}
	if !found {
		return 0, false
	}
	if earliest > mx.lastMuxing+mx.asyncDelay {
		earliest = mx.lastMuxing + mx.asyncDelay
	}
	return earliest, true
}

// Flush drains every remaining queued block, per spec.md §5's close-time
// flush pass with b_flush = true.
func (mx *Muxer) Flush() error {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	for {
		any := false
		for _, q := range mx.order {
			if !q.empty() {
				any = true
			}
		}
		if !any {
			return nil
		}
		far := mx.lastMuxing
		for _, q := range mx.order {
			if head, ok := q.peek(); ok && head.DTS > far {
				far = head.DTS
			}
		}
		if _, err := mx.advance(far); err != nil {
			return err
		}
	}
}

// Stop terminates RunSync's loop.
func (mx *Muxer) Stop() { close(mx.stop) }

// Close performs a final flush pass, draining every remaining queued
// block, per spec.md §5's asynchronous close semantics.
func (mx *Muxer) Close() error {
	return mx.Flush()
}

// sortedPIDs returns the currently registered queue PIDs in ascending
// order, for deterministic test iteration.
func (mx *Muxer) sortedPIDs() []uint16 {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	out := make([]uint16, 0, len(mx.queues))
	for pid := range mx.queues {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
