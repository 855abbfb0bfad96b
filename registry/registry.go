/*
NAME
  registry.go

DESCRIPTION
  registry.go provides the stream registry: stream-global parameters, the
  ordered lists of per-input and per-table packetizers, and the
  monotonically increasing stream version that signals the mux core to
  recompute bitrate and mode.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package registry provides the stream registry: the mapping from PID to
// packetizer, stream-wide parameters (TSID, NID, conformance, character
// set) and the stream version counter that the mux core watches for
// bitrate/mode recomputation.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/brinemux/tsmux/container/mts/charset"
)

// Conformance selects which normative profile (if any) table emission
// timing and presence is checked against.
type Conformance int

const (
	ConformanceNone Conformance = iota
	ConformanceISO
	ConformanceATSC
	ConformanceDVB
	ConformanceHDMV
)

// maxPrepareCeiling is the hard upper bound on Parameters.MaxPrepare,
// regardless of PacketInterval × Granularity.
const maxPrepareCeiling = 20 * time.Millisecond

// Parameters holds stream-wide muxing parameters. Construct with
// NewParameters so the MaxPrepare invariant is always honoured.
type Parameters struct {
	Conformance    Conformance
	Charset        charset.Charset
	PacketInterval time.Duration // Microseconds between two packets at the current rate.
	Granularity    int           // TS packets produced per mux call (7 sync, 1 async).
	MaxPrepare     time.Duration // How far ahead of emission a packet must be ready. = PacketInterval * Granularity, clamped.
}

// NewParameters builds Parameters, deriving MaxPrepare from
// packetInterval and granularity and clamping it to 20ms.
func NewParameters(conformance Conformance, cs charset.Charset, packetInterval time.Duration, granularity int) Parameters {
	p := Parameters{
		Conformance:    conformance,
		Charset:        cs,
		PacketInterval: packetInterval,
		Granularity:    granularity,
	}
	p.MaxPrepare = packetInterval * time.Duration(granularity)
	if p.MaxPrepare > maxPrepareCeiling {
		p.MaxPrepare = maxPrepareCeiling
	}
	return p
}

// Handle is a stable reference to an input or table held by a Stream. It
// survives additions/removals elsewhere in the list, unlike a slice index,
// and unlike a pointer it does not let the holder reach back into Stream's
// internals: all access to the referent goes back through the Stream.
type Handle int

// ErrPIDInUse is returned by AddInput/AddTable when pid is already owned
// by another packetizer in the stream.
var ErrPIDInUse = errors.New("PID already in use")

// ErrUnknownHandle is returned when a Handle does not name a live entry.
var ErrUnknownHandle = errors.New("unknown handle")

// Entity is the minimal shape the registry needs from anything it assigns
// a PID and a handle: something that can report the PID it currently
// claims and whether it is waiting to be removed once drained.
type Entity interface {
	PID() uint16
	Deleted() bool
}

// entry wraps a registered Entity with its bookkeeping: live handles never
// get reused while it is present, even across deletion and resurrection.
type entry struct {
	handle Handle
	value  Entity
	gone   bool // Set once removed; the slot is retained so Handle lookups fail predictably rather than pointing at a different entity.
}

// Stream is the mux session's stream registry: it owns every per-input and
// per-table packetizer by stable handle, enforces the PID-uniqueness
// invariant, and exposes a monotonically advancing StreamVersion so the
// mux core knows when to re-derive bitrate and mode.
//
// All mutation goes through Stream's methods, which take mu for the
// duration of the mutation only; packet bodies are built by callers with
// the lock released, mirroring the synchronous mux loop's "hold the lock
// only while mutating registries" rule.
type Stream struct {
	TSID uint16
	NID  uint16

	Params Parameters

	mu       sync.Mutex
	inputs   []entry
	tables   []entry
	nextH    Handle
	raps     []time.Duration // Sorted ascending future random-access-point muxing times.
	version  uint64
}

// NewStream returns a Stream with the given identifiers and parameters.
func NewStream(tsid, nid uint16, params Parameters) *Stream {
	return &Stream{TSID: tsid, NID: nid, Params: params}
}

// StreamVersion returns the current, monotonically increasing stream
// version. Loads are atomic so readers never need the stream lock.
func (s *Stream) StreamVersion() uint64 {
	return atomic.LoadUint64(&s.version)
}

// bump advances StreamVersion. Called by Stream whenever the set of
// inputs/tables or a tracked per-input property changes.
func (s *Stream) bump() {
	atomic.AddUint64(&s.version, 1)
}

func pidInUse(list []entry, pid uint16) bool {
	for _, e := range list {
		if !e.gone && e.value.PID() == pid {
			return true
		}
	}
	return false
}

// AddInput registers an input packetizer and returns its stable handle.
// Inputs are ordered by insertion; Tables and Inputs never share a PID.
func (s *Stream) AddInput(in Entity) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pidInUse(s.inputs, in.PID()) || pidInUse(s.tables, in.PID()) {
		return 0, ErrPIDInUse
	}
	h := s.nextH
	s.nextH++
	s.inputs = append(s.inputs, entry{handle: h, value: in})
	s.bump()
	return h, nil
}

// AddTable registers a table packetizer and returns its stable handle.
// Tables are ordered by insertion; callers should add PAT before PMT
// before SI tables, per the spec's emission-order rule.
func (s *Stream) AddTable(t Entity) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pidInUse(s.inputs, t.PID()) || pidInUse(s.tables, t.PID()) {
		return 0, ErrPIDInUse
	}
	h := s.nextH
	s.nextH++
	s.tables = append(s.tables, entry{handle: h, value: t})
	s.bump()
	return h, nil
}

// RemoveInput marks an input as gone. It is not compacted out of the
// slice until the caller has confirmed its FIFO is drained; Stream itself
// does not track FIFO occupancy, a packetizer.Input's Deleted/drained
// state does.
func (s *Stream) RemoveInput(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.inputs {
		if s.inputs[i].handle == h && !s.inputs[i].gone {
			s.inputs[i].gone = true
			s.bump()
			return nil
		}
	}
	return ErrUnknownHandle
}

// Input returns the Entity registered under h, or ErrUnknownHandle.
func (s *Stream) Input(h Handle) (Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.inputs {
		if e.handle == h && !e.gone {
			return e.value, nil
		}
	}
	return nil, ErrUnknownHandle
}

// Inputs returns the live inputs in insertion order.
func (s *Stream) Inputs() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, 0, len(s.inputs))
	for _, e := range s.inputs {
		if !e.gone {
			out = append(out, e.value)
		}
	}
	return out
}

// Tables returns the live table packetizers in insertion order (PAT, then
// PMT, then SI, by registration convention).
func (s *Stream) Tables() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, 0, len(s.tables))
	for _, e := range s.tables {
		if !e.gone {
			out = append(out, e.value)
		}
	}
	return out
}

// Compact drops registry slots whose Entity reports Deleted() and whose
// FIFO the caller has confirmed is drained (the caller passes drained
// alongside each handle it wants removed).
func (s *Stream) Compact(drained map[Handle]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = compactList(s.inputs, drained)
}

func compactList(list []entry, drained map[Handle]bool) []entry {
	out := list[:0]
	for _, e := range list {
		if e.gone && e.value.Deleted() && drained[e.handle] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SetRAPs replaces the sorted list of future random-access-point muxing
// times, typically supplied by video inputs as they discover I-frames.
func (s *Stream) SetRAPs(raps []time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]time.Duration(nil), raps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s.raps = sorted
}

// RAPs returns the sorted list of future random-access-point muxing times.
func (s *Stream) RAPs() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.raps...)
}

// NextRAP returns the earliest RAP at or after after, and whether one was
// found.
func (s *Stream) NextRAP(after time.Duration) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.raps {
		if r >= after {
			return r, true
		}
	}
	return 0, false
}
