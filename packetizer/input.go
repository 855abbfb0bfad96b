/*
NAME
  input.go

DESCRIPTION
  input.go declares the Input contract every per-input packetizer subtype
  implements, and the shared Open/Send skeleton they build on.

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

import "github.com/brinemux/tsmux/container/mts"

// Format describes the elementary-stream configuration a caller hands to
// Open. Subtypes read only the fields relevant to them; the rest are
// ignored.
type Format struct {
	Codec              string // e.g. "h264", "mpeg2video", "aac", "ac3", "dts", "dvbsub".
	AVCExtradata       []byte // SPS/PPS, required for h264.
	FrameRate          [2]int // num/den; required for video.
	AudioSpecificConfig []byte // MP4A ASC, first bytes only.
	Language           string // ISO-639 code, any of the 1/2B/2T forms.
	AudioType          byte
	Pages              string // DVB subtitle "page=lang[/type],..." configuration.
}

// Input is the contract every per-input packetizer subtype implements, per
// spec.md §4.1: open(fmt) → ok|reject, close(), send(chain) → chain.
type Input interface {
	// Open validates fmt and prepares the packetizer to accept access
	// units. It returns (false, ErrUnsupportedFormat) when fmt's codec
	// does not belong to this subtype, and a non-nil error for any other
	// configuration rejection (missing bitrate, missing extradata, etc).
	Open(fmt Format) (bool, error)

	// Close releases resources. Close-time errors are logged only, per
	// spec.md §7.
	Close() error

	// Send packetizes one access unit into a chain of TS packets. A nil
	// chain with a nil error means no packets were produced: either the
	// access unit carried an invalid timestamp and was dropped, which is
	// not logged, or an Audio input is still collecting FramesPerPES
	// frames.
	Send(au AccessUnit) ([]mts.Packet, error)
}
