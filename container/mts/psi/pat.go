/*
NAME
  pat.go

DESCRIPTION
  pat.go extends the single-program PAT type with a multi-program form:
  a PAT section may list any number of (program_number, program_map_PID)
  pairs, and the mux's auto/manual PAT table packetizer needs to emit all
  of them in the sorted order spec.md §4.2 requires. The original PAT type
  (one program) is kept unchanged for its existing fixtures and callers.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

// PATProgram is one (program_number, program_map_PID) pair in a PAT
// section's program loop. program_number 0 conventionally carries the NIT
// PID rather than a PMT PID, per ISO/IEC 13818-1, but the mux core never
// emits that entry since NIT is reached via the TSID, not the PAT.
type PATProgram struct {
	Number uint16
	PID    uint16
}

func (e PATProgram) bytes() []byte {
	return []byte{
		byte(e.Number >> 8), byte(e.Number),
		0xe0 | byte(e.PID>>8&0x1f), byte(e.PID),
	}
}

// PATMulti implements SpecificData for a PAT section listing any number
// of programs, in the order given.
type PATMulti struct {
	Programs []PATProgram
}

func (p *PATMulti) Bytes() []byte {
	out := make([]byte, 0, PATLen*len(p.Programs))
	for _, e := range p.Programs {
		out = append(out, e.bytes()...)
	}
	return out
}

// SplitPAT packs programs into the minimum number of PAT sections whose
// encoded length stays within MaxSectionLength.
func SplitPAT(tsid uint16, version byte, programs []PATProgram) []*PSI {
	var groups [][]PATProgram
	var cur []PATProgram
	const overhead = TSSDefLen + 4 // section_length also counts the syntax-section header and the CRC.
	curLen := overhead
	for _, prog := range programs {
		if curLen+PATLen > MaxSectionLength && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			curLen = overhead
		}
		cur = append(cur, prog)
		curLen += PATLen
	}
	groups = append(groups, cur)

	out := make([]*PSI, len(groups))
	last := byte(len(groups) - 1)
	for i, g := range groups {
		out[i] = &PSI{
			PointerField:    0x00,
			TableID:         patID,
			SyntaxIndicator: true,
			SyntaxSection: &SyntaxSection{
				TableIDExt:   tsid,
				Version:      version,
				CurrentNext:  true,
				Section:      byte(i),
				LastSection:  last,
				SpecificData: &PATMulti{Programs: g},
			},
		}
	}
	return out
}
