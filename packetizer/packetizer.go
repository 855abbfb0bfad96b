/*
NAME
  packetizer.go

DESCRIPTION
  packetizer.go provides the common per-input packetizer base: PES framing,
  TS packetization with PCR interleaving, continuity counter bookkeeping and
  the access-unit-to-TS-packet-chain pipeline shared by every elementary
  stream subtype (video-mpeg, video-private, a52, dca, mp4a, mpga, dvbs).

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package packetizer implements the per-input packetizers: one instance per
// elementary stream, consuming access units and emitting chains of 188-byte
// TS packets carrying PES.
package packetizer

import (
	"errors"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/pes"
	"github.com/brinemux/tsmux/registry"
)

// pcrPeriodThreshold is the maximum PCR repetition period tolerated before
// a non-fatal conformance warning is logged, identical across every
// profile this mux recognizes, per spec.md §4.2.
const pcrPeriodThreshold = 100 * time.Millisecond

// CheckPCRConformance logs a non-fatal warning if period exceeds the
// normative PCR repetition threshold under conf. ConformanceNone never
// warns.
func CheckPCRConformance(conf registry.Conformance, period time.Duration, log logging.Logger) {
	if conf == registry.ConformanceNone || period <= pcrPeriodThreshold {
		return
	}
	log.Warning("PCR period exceeds conformance threshold", "period", period, "threshold", pcrPeriodThreshold)
}

// Real PES stream_id values, per ISO/IEC 13818-1 table 2-22. pes.H264SID and
// friends name stream *types*, not the stream_id byte a PES header actually
// carries, so the mux core uses these instead.
const (
	StreamIDVideo   = 0xE0
	StreamIDAudio   = 0xC0
	StreamIDPrivate = 0xBD // DVB AC-3/DTS/subtitles travel in a private_stream_1 PES.
)

// ErrUnsupportedFormat is returned by Open when the supplied format record
// is not one this packetizer subtype can carry. The registry treats it as
// "try another packetizer type".
var ErrUnsupportedFormat = errors.New("format not supported by this packetizer")

// Priority orders packetizers within MuxGet's tie-break.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityPCR
	PrioritySI
)

// AccessUnit is one coded video picture or one audio frame handed to a
// packetizer's Send method.
type AccessUnit struct {
	Data          []byte
	PTS           uint64 // 90kHz.
	DTS           uint64 // 90kHz; equal to PTS when the codec has no B-frame reordering.
	Delay         time.Duration
	RandomAccess  bool // I-frame, or first access unit of the stream.
	Discontinuity bool
	Aligned       bool // First frame of the PES is declared data-aligned.
}

// InvalidTimestamp marks a PTS/DTS the upstream source could not derive;
// Send drops any chain carrying one, per spec.
const InvalidTimestamp = ^uint64(0)

// Base holds the fields common to every per-input packetizer, mirroring
// ts_packetizer plus the ts_input additions.
type Base struct {
	PID           uint16
	ConfiguredPID uint16
	Priority      Priority
	TotalBitrate  int // bits/s, including PES and TS overhead.
	PeakBitrate   int // T-STD peak bitrate for this queue.
	TSDelay       time.Duration

	StreamType byte
	StreamID   byte // PES stream_id.
	Descriptors []byte

	PCRPeriod    time.Duration // 0 disables PCR carriage on this PID.
	PCRTolerance time.Duration

	NextPCR    time.Duration
	LastMuxing time.Duration
	CC         byte // 4-bit continuity counter.
	ESVersion  uint32

	FramesPerPES int // Audio subtypes may coalesce this many frames per PES.

	deleted bool
	log     logging.Logger

	// lastTail holds the final incomplete 184-byte slice of the previous
	// non-random-access VideoMPEG PES (see retainTail). No subtype calls
	// prependTail, so the retained bytes are never written out again and
	// every PES starts in a fresh TS packet.
	lastTail []byte
}

// NewBase returns a Base configured with pid and log. Priority and bitrate
// fields are zero and should be set by the concrete subtype constructor or
// by the PCR-election state machine.
func NewBase(pid uint16, streamType, streamID byte, log logging.Logger) Base {
	return Base{
		PID:           pid,
		ConfiguredPID: pid,
		StreamType:    streamType,
		StreamID:      streamID,
		log:           log,
	}
}

// Deleted reports whether this packetizer has been marked for removal
// (registry.Entity).
func (b *Base) Deleted() bool { return b.deleted }

// ESInfo returns the fields the PMT builder needs to describe this
// elementary stream: stream_type, PID, es_version (for PMT dirtying) and
// raw descriptor bytes.
func (b *Base) ESInfo() (streamType byte, pid uint16, esVersion uint32, descriptors []byte) {
	return b.StreamType, b.PID, b.ESVersion, b.Descriptors
}

// PCRPeriodOf reports this input's configured PCR period, for PCR PID
// election in the PMT builder.
func (b *Base) PCRPeriodOf() time.Duration { return b.PCRPeriod }

// TotalBitrateOf reports this input's declared total bitrate (bits/s,
// including PES and TS overhead), for the mux core's bitrate/mode
// recomputation on stream_version moves. Zero means "undeclared", which
// forces AUTO mode to VBR.
func (b *Base) TotalBitrateOf() int { return b.TotalBitrate }

// PeakBitrateOf reports this input's T-STD peak bitrate, used by the mux
// core to shape its queue's min_muxing.
func (b *Base) PeakBitrateOf() int { return b.PeakBitrate }

// PriorityOf reports this input's current arbitration priority.
func (b *Base) PriorityOf() Priority { return b.Priority }

// LastMuxedAt reports the last timestamp a packet with this PID was
// produced, for autodelete_delay evaluation in the PMT builder.
func (b *Base) LastMuxedAt() time.Duration { return b.LastMuxing }

// ticksToDuration converts a 90kHz PTS/DTS value to a time.Duration.
func ticksToDuration(ts uint64) time.Duration { return time.Duration(ts) * time.Second / 90000 }

// MarkDeleted flags the packetizer as pending removal; the registry removes
// it once the caller confirms the FIFO is drained.
func (b *Base) MarkDeleted() { b.deleted = true }

// nextCC returns the current continuity counter and advances it modulo 16.
func (b *Base) nextCC() byte {
	cc := b.CC
	b.CC = (b.CC + 1) & 0xF
	return cc
}

// ccFor returns the continuity counter for a TS packet without advancing it
// when the packet carries no payload (adaptation-only packets must not
// advance CC).
func (b *Base) ccFor(hasPayload bool) byte {
	if !hasPayload {
		return b.CC
	}
	return b.nextCC()
}

// framePES builds one PES packet from an access unit. streamID selects the
// PES stream_id; pts/dts carry is controlled by withDTS (video only, and
// only when pts != dts).
func framePES(streamID byte, au AccessUnit, withDTS bool) pes.Packet {
	p := pes.Packet{
		StreamID:     streamID,
		PDI:          pes.PDIPTS,
		PTS:          au.PTS,
		HeaderLength: 5,
		DAI:          au.Aligned,
		Data:         au.Data,
	}
	if withDTS && au.PTS != au.DTS {
		p.PDI = pes.PDIPTSDTS
		p.DTS = au.DTS
		p.HeaderLength = 10
	}
	total := len(au.Data) + int(p.HeaderLength) + 3 // optional-fields bytes + header-length byte.
	if total <= 0xFFFF {
		p.Length = uint16(total)
	} else {
		p.Length = 0 // Legal for video streams only, per spec.md §6.
	}
	return p
}

// packetizeTS splits pesBytes into a chain of TS packets for pid. The first
// packet sets PUSI; if rap is true it also sets RAI (and the adaptation
// field's elementary_stream_priority / transport_priority are set on every
// packet of the access unit, per spec.md §4.1). If pcr != nil a PCR is
// carried in the first packet's adaptation field.
func packetizeTS(pid uint16, pesBytes []byte, cc *byte, rap, discontinuity bool, pcr *uint64) []mts.Packet {
	var out []mts.Packet
	first := true
	for len(pesBytes) > 0 {
		// Every packet carries an adaptation field, even if only the
		// default 2-byte stuffing form: Packet.FillPayload's payload-size
		// arithmetic is written against that fixed 6(+6 for PCR)-byte
		// overhead, so mixing adaptation-less packets into the same chain
		// would make FillPayload overestimate available payload space.
		pkt := mts.Packet{
			PID:      pid,
			PUSI:     first,
			Priority: rap,
			AFC:      mts.HasPayload | mts.HasAdaptationField,
			ESPI:     rap,
		}
		if first {
			pkt.RAI = rap
			pkt.DI = discontinuity
			if pcr != nil {
				pkt.PCRF = true
				pkt.PCR = *pcr
			}
		}
		n := pkt.FillPayload(pesBytes)
		pesBytes = pesBytes[n:]
		pkt.CC = *cc
		if pkt.AFC&mts.HasPayload != 0 {
			*cc = (*cc + 1) & 0xF
		}
		out = append(out, pkt)
		first = false
	}
	return out
}

// retainTail saves data's final incomplete TS-payload-sized remainder in
// lastTail, per the overlap rule in spec.md §4.1. It
// must not be called after an I-frame access unit.
func (b *Base) retainTail(data []byte) {
	const tsPayload = mts.PacketSize - mts.HeadSize
	rem := len(data) % tsPayload
	if rem == 0 || rem >= tsPayload {
		b.lastTail = nil
		return
	}
	b.lastTail = append([]byte(nil), data[len(data)-rem:]...)
}

// prependTail returns data with any retained tail from the previous PES
// prepended, clearing the retained tail.
func (b *Base) prependTail(data []byte) []byte {
	if len(b.lastTail) == 0 {
		return data
	}
	out := append(append([]byte(nil), b.lastTail...), data...)
	b.lastTail = nil
	return out
}
