/*
NAME
  table.go

DESCRIPTION
  table.go implements the PSI/SI table packetizers (PAT, PMT, SDT, NIT,
  TDT): periodic and RAP-anchored emission scheduling, section splitting
  and CRC sealing via the mts/psi package, and the shared send(now)
  pipeline every table type builds on.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package table implements the PSI/SI table packetizers: PAT, PMT, SDT,
// NIT and TDT, each owning a chain of sections and a schedule for when to
// next repeat them.
package table

import (
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/psi"
	"github.com/brinemux/tsmux/registry"
)

// Table is the contract every PSI/SI table packetizer implements:
// registry.Entity so it can be registered on the stream, plus Send to
// produce TS packets when its schedule says it is due.
type Table interface {
	registry.Entity

	// Send returns the TS packets for this table's sections if now has
	// reached this table's next scheduled emission, else (nil, false).
	Send(now time.Duration) ([]mts.Packet, bool)

	// Rebuild re-serializes this table's sections from current content,
	// bumping its version when that content changed; called whenever the underlying content (PAT
	// program list, PMT ES list, SDT services, NIT name) changes.
	Rebuild()
}

// Base holds the fields common to every PSI/SI table packetizer, per
// spec.md §3's ts_table.
type Base struct {
	Name    string
	PID     uint16
	Stream  *registry.Stream

	Interval   time.Duration // Between sections of a multi-section table.
	TSInterval time.Duration // Between TS packets of a multi-packet section.
	Period     time.Duration
	Offset     time.Duration
	RAPAdvance time.Duration // < 0 disables RAP anchoring.
	MinPeriod  time.Duration
	MaxPeriod  time.Duration

	DefinesProgram bool
	ProgramNumber  uint16

	LastMuxing time.Duration
	CC         byte

	sections []*psi.PSI
	deleted  bool
	log      logging.Logger

	committed   bool          // RAP-anchored state machine: armed (false) vs committed (true).
	commitAt    time.Duration // Wall time at which a committed emission is due.

	conformanceWarned bool // Set once checkConformance has logged, to avoid repeating every emission.
}

// NewBase returns a Base for a table at pid, defaulting RAPAdvance to
// disabled (periodic scheduling).
func NewBase(name string, pid uint16, stream *registry.Stream, log logging.Logger) Base {
	return Base{
		Name:       name,
		PID:        pid,
		Stream:     stream,
		RAPAdvance: -1,
		log:        log,
	}
}

func (b *Base) Deleted() bool { return b.deleted }

// due reports whether, given now, this table's schedule says it is time
// to emit, and advances the RAP-anchored state machine as a side effect.
// Periodic scheduling: spec.md §4.2 "Periodic" rule. RAP-anchored:
// spec.md §4.2 "RAP-anchored" rule and §4.4's ARMED/COMMITTED states.
func (b *Base) due(now time.Duration, raps func(after time.Duration) (time.Duration, bool), maxPrepare time.Duration) bool {
	if b.RAPAdvance < 0 {
		next := b.LastMuxing + b.Period
		if next < now {
			// Period already overrun; emit at the earliest opportunity. No
			// overrun warning is logged.
			return now >= b.LastMuxing+maxPrepare+b.Offset
		}
		return now >= next
	}

	if !b.committed {
		if rap, ok := raps(b.LastMuxing + b.MinPeriod); ok {
			duration := b.Interval // Wall time to emit all sections, approximated by Interval alone.
			b.commitAt = rap - b.RAPAdvance - duration
			b.committed = true
		} else if b.LastMuxing+b.MaxPeriod <= now {
			// Fallback: MaxPeriod elapsed with no suitable RAP. Commit now
			// unconditionally, per spec.md §4.4.
			b.commitAt = now
			b.committed = true
		}
	}
	if b.committed && now >= b.commitAt {
		b.committed = false
		return true
	}
	return false
}

// conformanceThresholds gives the maximum repetition period each table
// tolerates under a given conformance profile before a non-fatal warning is
// logged, per spec.md §4.2.
var conformanceThresholds = map[string]map[registry.Conformance]time.Duration{
	"PAT": {registry.ConformanceATSC: 100 * time.Millisecond, registry.ConformanceDVB: 100 * time.Millisecond},
	"PMT": {registry.ConformanceATSC: 400 * time.Millisecond, registry.ConformanceDVB: 100 * time.Millisecond},
	"SDT": {registry.ConformanceDVB: 2 * time.Second},
	"NIT": {registry.ConformanceDVB: 10 * time.Second},
	"TDT": {registry.ConformanceDVB: 30 * time.Second},
}

// checkConformance logs a one-time non-fatal warning if this table's
// configured Period exceeds the normative threshold for its name under the
// stream's conformance profile.
func (b *Base) checkConformance() {
	if b.conformanceWarned {
		return
	}
	threshold, ok := conformanceThresholds[b.Name][b.Stream.Params.Conformance]
	if !ok || b.Period <= threshold {
		return
	}
	b.conformanceWarned = true
	b.log.Warning("table period exceeds conformance threshold", "table", b.Name, "period", b.Period, "threshold", threshold)
}

// buildPackets serializes b.sections into a chain of TS packets and records
// now as LastMuxing. Each section starts in a new TS packet, after its own
// 0x00 pointer field; sections are not packed together into one packet.
// packetInterval is not used here: the muxer's pollTables gives the chain
// dts = now + packet_interval and delay = 2 × packet_interval.
func (b *Base) buildPackets(now, packetInterval time.Duration) []mts.Packet {
	b.checkConformance()
	var out []mts.Packet
	for _, sec := range b.sections {
		out = append(out, b.buildPacketsFromBytes(sec.Bytes())...)
	}
	b.LastMuxing = now
	return out
}

// buildPacketsFromBytes packetizes a single already-serialized section (PSI
// or, for TDT, a bare table with no syntax section) into a TS packet chain.
func (b *Base) buildPacketsFromBytes(raw []byte) []mts.Packet {
	// Pad only the final partial payload, so every packet carries a full
	// psi.PacketSize payload and needs no adaptation-field stuffing.
	if tail := len(raw) % psi.PacketSize; tail != 0 {
		full := len(raw) - tail
		raw = append(raw[:full:full], psi.AddPadding(raw[full:])...)
	}
	var out []mts.Packet
	first := true
	for len(raw) > 0 {
		pkt := mts.Packet{
			PID:     b.PID,
			PUSI:    first,
			AFC:     mts.HasPayload,
			CC:      b.CC,
			Payload: raw[:psi.PacketSize],
		}
		b.CC = (b.CC + 1) & 0xF
		raw = raw[psi.PacketSize:]
		out = append(out, pkt)
		first = false
	}
	return out
}
