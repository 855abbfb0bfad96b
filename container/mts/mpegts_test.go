/*
NAME
  mpegts_test.go

DESCRIPTION
  mpegts_test.go contains testing for functionality found in mpegts.go.

AUTHORS
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mts

import (
	"bytes"
	"testing"

	"github.com/Comcast/gots/v2/packet"

	"github.com/brinemux/tsmux/container/mts/psi"
)

// TestPacketBytesRoundTrip checks that a packet carrying the default
// 2-byte adaptation field (the form packetizeTS always uses) with a
// payload filling the rest of the packet exactly serializes to PacketSize
// bytes and decodes back to the same PID and payload.
func TestPacketBytesRoundTrip(t *testing.T) {
	p := Packet{
		PUSI: true,
		PID:  0x100,
		CC:   5,
		AFC:  HasPayload | HasAdaptationField,
	}
	payload := bytes.Repeat([]byte{0xAB}, PacketSize-HeadSize-DefaultAdaptationSize)
	p.FillPayload(payload)

	b := p.Bytes(nil)
	if len(b) != PacketSize {
		t.Fatalf("got %d bytes, want %d", len(b), PacketSize)
	}
	if b[0] != 0x47 {
		t.Fatalf("got sync byte %#x, want 0x47", b[0])
	}

	gotPID, err := PID(b)
	if err != nil {
		t.Fatalf("PID: %v", err)
	}
	if gotPID != p.PID {
		t.Fatalf("got PID %#x, want %#x", gotPID, p.PID)
	}

	gotPayload, err := Payload(b)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatal("decoded payload does not match what was filled in")
	}
}

// TestPacketBytesStuffsWithFF checks that a short payload is padded with
// 0xFF stuffing bytes out to PacketSize, per ISO/IEC 13818-1.
func TestPacketBytesStuffsWithFF(t *testing.T) {
	p := Packet{PID: 0x100, AFC: HasPayload}
	data := []byte{0x01, 0x02, 0x03}
	n := p.FillPayload(data)
	if n != len(data) {
		t.Fatalf("got %d bytes consumed, want %d", n, len(data))
	}

	b := p.Bytes(nil)
	if len(b) != PacketSize {
		t.Fatalf("got %d bytes, want %d", len(b), PacketSize)
	}
	stuffingLen := PacketSize - HeadSize - len(data)
	stuffing := b[HeadSize : HeadSize+stuffingLen]
	for i, v := range stuffing {
		if v != 0xff {
			t.Fatalf("stuffing byte %d = %#x, want 0xff", i, v)
		}
	}
	if !bytes.Equal(b[HeadSize+stuffingLen:], data) {
		t.Fatal("payload bytes were not reproduced after the stuffing region")
	}
}

// TestFillPayloadReportsRemainder checks that FillPayload returns fewer
// bytes consumed than supplied once the packet's payload capacity is
// reached, so a caller chaining packets can track what remains.
func TestFillPayloadReportsRemainder(t *testing.T) {
	p := Packet{PID: 0x100, AFC: HasPayload}
	data := bytes.Repeat([]byte{0x7}, 300)
	n := p.FillPayload(data)
	if n != len(p.Payload) {
		t.Fatalf("consumed %d bytes but payload holds %d", n, len(p.Payload))
	}
	if n >= len(data) {
		t.Fatal("expected FillPayload to not consume the full input for an oversized access unit")
	}
}

// TestNullPacket checks that NullPacket produces a well-formed, full-size
// stuffing packet on the reserved null PID.
func TestNullPacket(t *testing.T) {
	p := NullPacket()
	if p.PID != NullPID {
		t.Fatalf("got PID %#x, want %#x", p.PID, NullPID)
	}
	b := p.Bytes(nil)
	if len(b) != PacketSize {
		t.Fatalf("got %d bytes, want %d", len(b), PacketSize)
	}
	gotPID, err := PID(b)
	if err != nil {
		t.Fatalf("PID: %v", err)
	}
	if gotPID != NullPID {
		t.Fatalf("got decoded PID %#x, want %#x", gotPID, NullPID)
	}
}

// TestAddAdaptationFieldDiscontinuity checks that AddAdaptationField plus
// the DiscontinuityIndicator option sets the discontinuity bit in a raw
// PAT packet that previously had none, per spec.md §4.1's rule that an
// input's first block after a DISCONTINUITY flag gets its adaptation
// discontinuity indicator set on the first TS packet.
func TestAddAdaptationFieldDiscontinuity(t *testing.T) {
	p := Packet{
		PID:     PatPid,
		AFC:     HasPayload,
		CC:      1,
		Payload: psi.AddPadding(psi.NewPATPSI().Bytes()),
	}
	raw := p.Bytes(nil)

	var pkt packet.Packet
	copy(pkt[:], raw)
	if err := AddAdaptationField(&pkt, DiscontinuityIndicator(true)); err != nil {
		t.Fatalf("AddAdaptationField: %v", err)
	}
	if pkt[AdaptationControlIdx]&AdaptationControlMask != AdaptationControlMask {
		t.Fatal("expected adaptation field control bits to indicate both adaptation field and payload")
	}
	if pkt[DiscontinuityIndicatorIdx]&DiscontinuityIndicatorMask == 0 {
		t.Fatal("expected discontinuity indicator bit to be set")
	}
}

// TestAddAdaptationFieldAlreadyPresent checks that adding a second
// adaptation field to an already-adapted packet is rejected.
func TestAddAdaptationFieldAlreadyPresent(t *testing.T) {
	p := Packet{PID: 0x100, AFC: HasPayload | HasAdaptationField, CC: 1}
	p.FillPayload(bytes.Repeat([]byte{0x1}, 100))
	raw := p.Bytes(nil)

	var pkt packet.Packet
	copy(pkt[:], raw)
	if err := AddAdaptationField(&pkt); err == nil {
		t.Fatal("expected an error adding an adaptation field to a packet that already has one")
	}
}

// TestProgramsAndStreams checks that Programs correctly decodes a PAT
// built from this package's own psi helpers, confirming the mux and an
// independent PSI implementation agree on the program map it produces.
// Streams and MediaStreams are not called here.
func TestProgramsAndStreams(t *testing.T) {
	const (
		tsid     = 1
		progNum  = 1
		pmtPID   = 0x1000
		videoPID = 0x100
	)

	patPSI := psi.SplitPAT(tsid, 0, []psi.PATProgram{{Number: progNum, PID: pmtPID}})
	if len(patPSI) != 1 {
		t.Fatalf("expected a single-section PAT, got %d sections", len(patPSI))
	}
	pat := Packet{
		PUSI:    true,
		PID:     PatPid,
		AFC:     HasPayload,
		Payload: psi.AddPadding(patPSI[0].Bytes()),
	}

	pmtPSI := psi.NewPMTPSI()
	pmt := Packet{
		PUSI:    true,
		PID:     pmtPID,
		AFC:     HasPayload,
		Payload: psi.AddPadding(pmtPSI.Bytes()),
	}

	var buf bytes.Buffer
	buf.Write(pat.Bytes(nil))
	buf.Write(pmt.Bytes(nil))

	progs, err := Programs(buf.Bytes()[:PacketSize])
	if err != nil {
		t.Fatalf("Programs: %v", err)
	}
	gotPMTPID, ok := progs[progNum]
	if !ok {
		t.Fatalf("program %d missing from decoded PAT", progNum)
	}
	if gotPMTPID != pmtPID {
		t.Fatalf("got PMT PID %#x, want %#x", gotPMTPID, pmtPID)
	}
}
