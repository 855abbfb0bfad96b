/*
NAME
  config.go

DESCRIPTION
  config.go provides the mux core's functional-options configuration, in the
  same shape as container/mts/options.go's NewEncoder options: each Option
  validates and applies one setting to a *Muxer at construction time.

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

import (
	"errors"
	"time"
)

// Mode selects how the mux core paces output, per spec.md §4.3.
type Mode int

const (
	// AUTO chooses VBR if any input has no declared bitrate, else CAPPED.
	AUTO Mode = iota
	VBR
	CBR
	CAPPED
)

// MaxDelaying is the late-packet drop threshold, per spec.md §4.3.
const MaxDelaying = 200 * time.Millisecond

var (
	ErrInvalidMuxRate  = errors.New("mux rate must be positive for CBR/CAPPED")
	ErrInvalidGranular = errors.New("granularity must be positive")
)

// Option configures a Muxer at construction time.
type Option func(*Muxer) error

// WithMode selects the pacing mode.
func WithMode(m Mode) Option {
	return func(mx *Muxer) error {
		mx.mode = m
		return nil
	}
}

// WithMuxRate sets the CBR/CAPPED byte rate target, in bytes/s.
func WithMuxRate(bytesPerSec int) Option {
	return func(mx *Muxer) error {
		if bytesPerSec <= 0 {
			return ErrInvalidMuxRate
		}
		mx.muxRate = bytesPerSec
		return nil
	}
}

// WithGranularity sets the number of TS packets produced per mux call: 7
// for synchronous (networked) output, 1 for asynchronous (file) output, per
// spec.md §5.
func WithGranularity(n int) Option {
	return func(mx *Muxer) error {
		if n <= 0 {
			return ErrInvalidGranular
		}
		mx.granularity = n
		return nil
	}
}

// WithPadding enables null-packet padding in CBR/CAPPED when no queue has
// an eligible block.
func WithPadding(pad bool) Option {
	return func(mx *Muxer) error {
		mx.padding = pad
		return nil
	}
}

// WithDropLate sets the late-packet drop policy: any block more than
// MaxDelaying behind is dropped regardless of this setting; this option
// additionally drops any late block at all rather than delivering it with
// implicit delay, per spec.md §4.3.
func WithDropLate(drop bool) Option {
	return func(mx *Muxer) error {
		mx.dropLate = drop
		return nil
	}
}

// WithBurst enables the burst late-packet policy: on a late block, reset
// last_muxing to the block's DTS instead of delivering with implicit delay.
func WithBurst(burst bool) Option {
	return func(mx *Muxer) error {
		mx.burst = burst
		return nil
	}
}

// WithRTP enables RTP wrapping of each granularity group with the given
// SSRC; ssrc == 0 picks a random SSRC at Open, matching protocol/rtp's own
// NewPCREncoder default.
func WithRTP(enabled bool, ssrc uint32) Option {
	return func(mx *Muxer) error {
		mx.rtpEnabled = enabled
		mx.rtpSSRC = ssrc
		return nil
	}
}

// WithAsync selects the asynchronous (input-driven pump) regime instead of
// the default synchronous (wall-clock-paced) regime, per spec.md §5.
func WithAsync(enabled bool) Option {
	return func(mx *Muxer) error {
		mx.async = enabled
		return nil
	}
}

// WithAsyncDelay sets the extra delay asynchronous mode allows a block to
// sit in its FIFO before MuxCheckAsync forces it out.
func WithAsyncDelay(d time.Duration) Option {
	return func(mx *Muxer) error {
		mx.asyncDelay = d
		return nil
	}
}
