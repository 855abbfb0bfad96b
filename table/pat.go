/*
NAME
  pat.go

DESCRIPTION
  pat.go implements the PAT table packetizer: auto mode enumerates
  table packetizers with DefinesProgram set, sorted by ProgramNumber;
  manual mode takes a configured program map verbatim. Grounded in
  original_source/modules/stream_out/ts/pat.c's ProgramAdd/pat_Send shape.

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
	"sort"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/psi"
	"github.com/brinemux/tsmux/registry"
)

// Program is one (program_number, PMT PID) pair.
type Program struct {
	Number uint16
	PID    uint16
}

// PAT is the PAT table packetizer. In manual mode Programs is set
// directly by the caller and Auto is false; in auto mode Programs is
// recomputed by Rebuild from the registry's table list.
type PAT struct {
	Base
	Auto     bool
	Programs []Program
	version  byte
}

// NewPAT returns a PAT table packetizer on mts.PatPid.
func NewPAT(stream *registry.Stream, log logging.Logger) *PAT {
	p := &PAT{Base: NewBase("PAT", mts.PatPid, stream, log), Auto: true}
	p.DefinesProgram = false
	return p
}

func (p *PAT) PID() uint16 { return p.Base.PID }

// Rebuild recomputes the program list (auto mode only) and re-serializes
// the PAT section. Version increments when the sorted list changed.
func (p *PAT) Rebuild() {
	if p.Auto {
		var progs []Program
		for _, e := range p.Stream.Tables() {
			t, ok := e.(interface {
				ProgramInfo() (uint16, uint16, bool)
			})
			if !ok {
				continue
			}
			num, pid, defines := t.ProgramInfo()
			if defines {
				progs = append(progs, Program{Number: num, PID: pid})
			}
		}
		sort.Slice(progs, func(i, j int) bool { return progs[i].Number < progs[j].Number })
		if !sameProgs(p.Programs, progs) {
			p.version = (p.version + 1) % 32
		}
		p.Programs = progs
	}

	progs := make([]psi.PATProgram, len(p.Programs))
	for i, prog := range p.Programs {
		progs[i] = psi.PATProgram{Number: prog.Number, PID: prog.PID}
	}
	if !p.Auto {
		// Manual mode: compare with the programs last serialized.
		var prev []psi.PATProgram
		for _, sec := range p.sections {
			prev = append(prev, sec.SyntaxSection.SpecificData.(*psi.PATMulti).Programs...)
		}
		changed := len(prev) != len(progs)
		for i := 0; !changed && i < len(progs); i++ {
			changed = prev[i] != progs[i]
		}
		if changed {
			p.version = (p.version + 1) % 32
		}
	}
	p.sections = psi.SplitPAT(p.Stream.TSID, p.version, progs)
}

func sameProgs(a, b []Program) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Send produces TS packets for the PAT if due.
func (p *PAT) Send(now time.Duration) ([]mts.Packet, bool) {
	if p.sections == nil {
		p.Rebuild()
	}
	if !p.due(now, func(time.Duration) (time.Duration, bool) { return 0, false }, p.Stream.Params.MaxPrepare) {
		return nil, false
	}
	return p.buildPackets(now, p.Stream.Params.PacketInterval), true
}
