/*
NAME
  encoder.go

DESCRIPTION
  See Readme.md

AUTHOR
  Saxon Nelson-Milton (saxon@ausocean.org)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package rtp

import (
	"io"
	"math/rand"
	"time"
)

const (
	defaultPktType = 33
	timestampFreq  = 90000 // Hz
	mtsSize        = 188
	bufferSize     = 1000
	sendSize       = 7 * 188
)

// Encoder implements io writer and provides functionality to wrap data into
// rtp packets
type Encoder struct {
	dst           io.Writer
	ssrc          uint32
	seqNo         uint16
	clock         time.Duration
	frameInterval time.Duration
	lastTime      time.Time
	fps           int
	buffer        []byte
	pktSpace      [defPktSize]byte

	extTimestamp uint32 // Timestamp set by SetTimestamp, used in place of the fps clock when extClock is true.
	extClock     bool
}

// NewEncoder returns a new Encoder type given an io.Writer - the destination
// after encoding and the desired fps
func NewEncoder(dst io.Writer, fps int) *Encoder {
	return &Encoder{
		dst:           dst,
		ssrc:          rand.Uint32(),
		frameInterval: time.Duration(float64(time.Second) / float64(fps)),
		fps:           fps,
		buffer:        make([]byte, 0),
	}
}

// NewPCREncoder returns an Encoder whose timestamps are always supplied by
// the caller via SetTimestamp/EncodeAt, for wrapping a transport stream
// whose own PCR already provides a 90kHz-derived media clock.
func NewPCREncoder(dst io.Writer) *Encoder {
	return &Encoder{
		dst:      dst,
		ssrc:     rand.Uint32(),
		buffer:   make([]byte, 0),
		extClock: true,
	}
}

// Write provides an interface between a prior encoder and this rtp encoder,
// so that multiple layers of packetization can occur.
func (e *Encoder) Write(data []byte) (int, error) {
	e.buffer = append(e.buffer, data...)
	if len(e.buffer) < sendSize {
		return len(data), nil
	}
	buf := e.buffer
	for len(buf) != 0 {
		l := min(sendSize, len(buf))
		err := e.Encode(buf[:l])
		if err != nil {
			return len(data), err
		}
		buf = buf[l:]
	}
	e.buffer = e.buffer[:0]
	return len(data), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Encode takes a nalu unit and encodes it into an rtp packet and
// writes to the io.Writer given in NewEncoder
func (e *Encoder) Encode(payload []byte) error {
	pkt := Packet{
		Version:    rtpVer,           // version
		CSRCCount:  0,                // CSRC count
		PacketType: defaultPktType,   // 33 for mpegts
		Sync:       e.nxtSeqNo(),     // sequence number
		Timestamp:  e.nxtTimestamp(), // timestamp
		SSRC:       e.ssrc,           // source identifier
		Payload:    payload,
		Padding:    nil,
	}
	_, err := e.dst.Write(pkt.Bytes(e.pktSpace[:defPktSize]))
	if err != nil {
		return err
	}
	e.tick()
	return nil
}

// SetSSRC overrides the randomly chosen SSRC assigned at construction, for
// callers that configure a fixed synchronisation source identifier rather
// than accepting NewEncoder/NewPCREncoder's random default.
func (e *Encoder) SetSSRC(ssrc uint32) {
	e.ssrc = ssrc
}

// SetTimestamp overrides the fps-derived clock with an explicit 90kHz RTP
// timestamp for the next call to Encode, such as one derived from a
// transport stream's own PCR (PCR/300). Once called, nxtTimestamp always
// returns the most recently set value; the internal fps clock is no longer
// advanced or consulted.
func (e *Encoder) SetTimestamp(ts uint32) {
	e.extClock = true
	e.extTimestamp = ts
}

// EncodeAt is Encode with an explicit RTP timestamp, for callers deriving
// timestamps from a media clock (e.g. a transport stream's PCR) rather than
// a fixed frame rate.
func (e *Encoder) EncodeAt(payload []byte, timestamp uint32) error {
	e.SetTimestamp(timestamp)
	return e.Encode(payload)
}

// tick advances the clock one frame interval.
func (e *Encoder) tick() {
	if e.extClock {
		return
	}
	e.clock += e.frameInterval
}

// nxtTimestamp gets the next timestamp
func (e *Encoder) nxtTimestamp() uint32 {
	if e.extClock {
		return e.extTimestamp
	}
	return uint32(e.clock.Seconds() * timestampFreq)
}

// nxtSeqNo gets the next rtp packet sequence number
func (e *Encoder) nxtSeqNo() uint16 {
	e.seqNo++
	return e.seqNo - 1
}
