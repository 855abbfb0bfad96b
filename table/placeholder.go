/*
NAME
  placeholder.go

DESCRIPTION
  placeholder.go implements Placeholder, a table.Table that reserves a PID
  in the registry's table list but never schedules an emission. Used for
  EIT/MGT/RRT/STT and any other ATSC/DVB table this mux recognizes as part
  of the dispatch set but does not generate content for.

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
	"github.com/brinemux/tsmux/registry"
)

// Placeholder is a table.Table occupying a PID without ever emitting.
type Placeholder struct {
	Base
}

// NewPlaceholder returns a Placeholder reserving pid under name.
func NewPlaceholder(name string, pid uint16, stream *registry.Stream, log logging.Logger) *Placeholder {
	return &Placeholder{Base: NewBase(name, pid, stream, log)}
}

func (p *Placeholder) PID() uint16 { return p.Base.PID }

func (p *Placeholder) Rebuild() {}

// Send never reports due, per spec.md's EIT/MGT/RRT/STT Non-goal.
func (p *Placeholder) Send(now time.Duration) ([]mts.Packet, bool) { return nil, false }
