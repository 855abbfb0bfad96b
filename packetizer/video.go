/*
NAME
  video.go

DESCRIPTION
  video.go implements the video-mpeg and video-private per-input packetizer
  subtypes: MPEG-1/2, MPEG-4 Part 2 and H.264 video, and the DVB
  user-private stream-type fallback for MS codecs.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package packetizer

import (
	"fmt"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/codec/h264"
	"github.com/brinemux/tsmux/container/mts"
)

// VideoMPEG packetizes MPEG-1/2, MPEG-4 Part 2 and H.264 video. RAP
// detection for H.264 uses codec/h264.IsRandomAccess; other video codecs
// trust AccessUnit.RandomAccess as supplied by the caller, since this
// module does not parse MPEG-2/MPEG-4 picture headers (out of scope per
// spec.md §1's ES-parsing Non-goal).
type VideoMPEG struct {
	Base

	codec   string
	seenAny bool
}

// NewVideoMPEG returns a VideoMPEG packetizer for pid.
func NewVideoMPEG(pid uint16, log logging.Logger) *VideoMPEG {
	return &VideoMPEG{Base: NewBase(pid, mts.StreamTypeH264, StreamIDVideo, log)}
}

// Open validates fmt for a video-mpeg input. H.264 requires AVC
// extradata (SPS/PPS); all video codecs require a frame rate.
func (v *VideoMPEG) Open(f Format) (bool, error) {
	switch f.Codec {
	case "h264":
		v.StreamType = mts.StreamTypeH264
	case "mpeg2video":
		v.StreamType = mts.StreamTypeMPEG2Video
	case "mpeg4video":
		v.StreamType = mts.StreamTypeMPEG4Video
	default:
		return false, ErrUnsupportedFormat
	}
	if f.FrameRate[0] == 0 {
		return false, fmt.Errorf("video input requires a frame rate")
	}
	if f.Codec == "h264" && len(f.AVCExtradata) == 0 {
		return false, fmt.Errorf("h264 input requires AVC extradata (SPS/PPS)")
	}
	v.codec = f.Codec
	return true, nil
}

// PID satisfies registry.Entity.
func (v *VideoMPEG) PID() uint16 { return v.Base.PID }

func (v *VideoMPEG) Close() error { return nil }

// Send packetizes one video access unit. For H.264, the random-access
// determination prefers codec/h264.IsRandomAccess over the caller-supplied
// flag when the access unit's NAL type is decodable, since an IDR slice is
// authoritative regardless of what the caller believed.
func (v *VideoMPEG) Send(au AccessUnit) ([]mts.Packet, error) {
	if au.PTS == InvalidTimestamp || au.DTS == InvalidTimestamp {
		return nil, nil // Dropped without a warning; Muxer.Enqueue ignores a nil chain.
	}

	rap := au.RandomAccess
	if v.codec == "h264" {
		if t, err := h264.NALType(au.Data); err == nil {
			rap = h264.IsRandomAccess(au.Data) || t == h264.NALTypeSPS
		}
	}
	if !v.seenAny {
		rap = true
		v.seenAny = true
	}

	p := framePES(v.StreamID, au, true)
	buf := p.Bytes(nil)

	var pcr *uint64
	if v.PCRPeriod > 0 {
		pcrVal := au.PTS * 300 // 90kHz PTS to 27MHz PCR base units, extension 0.
		pcr = &pcrVal
	}

	pkts := packetizeTS(v.Base.PID, buf, &v.CC, rap, au.Discontinuity, pcr)

	if rap {
		v.lastTail = nil // Overlap retention is suppressed after an I-frame, per spec.md §4.1.
	} else {
		v.retainTail(buf)
	}
	v.LastMuxing = ticksToDuration(au.DTS)

	return pkts, nil
}

// VideoPrivate packetizes MS-codec and other DVB user-private video
// stream types that carry no standardized PES framing beyond PTS/DTS.
type VideoPrivate struct {
	Base
	seenAny bool
}

// NewVideoPrivate returns a VideoPrivate packetizer for pid.
func NewVideoPrivate(pid uint16, log logging.Logger) *VideoPrivate {
	return &VideoPrivate{Base: NewBase(pid, 0xA0, StreamIDPrivate, log)}
}

func (v *VideoPrivate) Open(f Format) (bool, error) {
	if f.Codec == "h264" || f.Codec == "mpeg2video" || f.Codec == "mpeg4video" {
		return false, ErrUnsupportedFormat // Those belong to VideoMPEG.
	}
	if f.FrameRate[0] == 0 {
		return false, fmt.Errorf("video input requires a frame rate")
	}
	v.StreamType = 0xA0
	return true, nil
}

// PID satisfies registry.Entity.
func (v *VideoPrivate) PID() uint16 { return v.Base.PID }

func (v *VideoPrivate) Close() error { return nil }

func (v *VideoPrivate) Send(au AccessUnit) ([]mts.Packet, error) {
	if au.PTS == InvalidTimestamp || au.DTS == InvalidTimestamp {
		return nil, nil
	}
	rap := au.RandomAccess || !v.seenAny
	v.seenAny = true

	p := framePES(v.StreamID, au, true)
	buf := p.Bytes(nil)

	var pcr *uint64
	if v.PCRPeriod > 0 {
		pcrVal := au.PTS * 300
		pcr = &pcrVal
	}
	pkts := packetizeTS(v.Base.PID, buf, &v.CC, rap, au.Discontinuity, pcr)
	v.LastMuxing = ticksToDuration(au.DTS)
	return pkts, nil
}
