/*
NAME
  tdt.go

DESCRIPTION
  tdt.go implements the TDT table packetizer. Unlike PAT/PMT/SDT/NIT, a TDT
  section carries no syntax section or CRC (ETSI EN 300 468 section 5.2.5),
  so it bypasses the psi.PSI/SyntaxSection model and is built directly from
  psi.TDT.Bytes.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package table

import (
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/psi"
	"github.com/brinemux/tsmux/registry"
)

// mjdEpoch is 1970-01-01 expressed as a Modified Julian Date, per ETSI EN
// 300 468 annex C.
const mjdEpoch = 40587

// TDT is the TDT table packetizer, carried on mts.TdtPid. Once registered
// it is scheduled under any conformance profile; unlike the CRC'd
// tables it has no version to bump since every emission is a fresh
// timestamp.
type TDT struct {
	Base

	// Now returns the current time for UTCTime encoding. Defaults to
	// time.Now if nil; tests substitute a fixed clock.
	Now func() time.Time
}

// NewTDT returns a TDT table packetizer.
func NewTDT(stream *registry.Stream, log logging.Logger) *TDT {
	return &TDT{Base: NewBase("TDT", mts.TdtPid, stream, log)}
}

func (t *TDT) PID() uint16 { return t.Base.PID }

// Rebuild is a no-op for TDT: each Send encodes the current time directly,
// there is no cached section to invalidate.
func (t *TDT) Rebuild() {}

// Send produces TS packets carrying the current UTC time if due.
func (t *TDT) Send(now time.Duration) ([]mts.Packet, bool) {
	if !t.due(now, func(time.Duration) (time.Duration, bool) { return 0, false }, t.Stream.Params.MaxPrepare) {
		return nil, false
	}
	t.checkConformance()
	clock := time.Now
	if t.Now != nil {
		clock = t.Now
	}
	tdt := psi.TDT{UTCTime: encodeMJDUTC(clock().UTC())}
	pkts := t.buildPacketsFromBytes(tdt.Bytes())
	t.LastMuxing = now
	return pkts, true
}

// encodeMJDUTC encodes tm as the 40-bit MJD+BCD field ETSI EN 300 468 annex
// C defines: a 16-bit Modified Julian Date followed by 3 BCD-encoded
// hour/minute/second bytes.
func encodeMJDUTC(tm time.Time) uint64 {
	mjd := uint64(tm.Unix()/86400) + mjdEpoch
	h, m, s := tm.Clock()
	return mjd<<24 | uint64(toBCD(h))<<16 | uint64(toBCD(m))<<8 | uint64(toBCD(s))
}

func toBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}
