/*
NAME
  sections.go

DESCRIPTION
  sections.go splits SI tables whose content (SDT service loop, NIT transport
  stream loop) can overflow a single section into the sequence of sections
  ETSI EN 300 468 requires, each carrying the same table_id_extension and a
  consistent section_number/last_section_number pair.

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

// MaxSectionLength is the largest section_length a private_section (and so
// an SDT, NIT or PMT section) may declare, per ETSI EN 300 468/ISO 13818-1:
// the 1024-byte section cap less the 3-byte header that precedes
// section_length.
const MaxSectionLength = 1021

// SplitSDT packs services into the minimum number of SDT sections whose
// encoded length stays within MaxSectionLength, and returns one *PSI per
// section with Section/LastSection set accordingly.
func SplitSDT(tsid, onid uint16, services []SDTService) []*PSI {
	var groups [][]SDTService
	var cur []SDTService
	// SDT.Bytes() fixed header (original_network_id + reserved), plus the
	// syntax-section header and CRC that section_length also counts.
	const overhead = 3 + TSSDefLen + 4
	curLen := overhead
	for _, svc := range services {
		l := len(svc.bytes())
		if curLen+l > MaxSectionLength && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			curLen = overhead
		}
		cur = append(cur, svc)
		curLen += l
	}
	groups = append(groups, cur) // Always at least one section, even if empty.

	out := make([]*PSI, len(groups))
	last := byte(len(groups) - 1)
	for i, g := range groups {
		out[i] = &PSI{
			PointerField:    0x00,
			TableID:         SDTActualID,
			SyntaxIndicator: true,
			PrivateBit:      true,
			SyntaxSection: &SyntaxSection{
				TableIDExt:  tsid,
				Version:     0,
				CurrentNext: true,
				Section:     byte(i),
				LastSection: last,
				SpecificData: &SDT{
					OriginalNetworkID: onid,
					Services:          g,
				},
			},
		}
	}
	return out
}

// SplitNIT packs transport stream entries into the minimum number of NIT
// sections whose encoded length stays within MaxSectionLength. Network
// descriptors are repeated identically in every section, as required.
func SplitNIT(networkID uint16, netDescs []Descriptor, streams []NITTransportStream) []*PSI {
	var netDescLen int
	for _, d := range netDescs {
		netDescLen += 2 + len(d.Data)
	}

	var groups [][]NITTransportStream
	var cur []NITTransportStream
	// network_descriptors_length + descriptors + transport_stream_loop_length,
	// plus the syntax-section header and CRC that section_length also counts.
	overhead := 4 + netDescLen + TSSDefLen + 4
	curLen := overhead
	for _, ts := range streams {
		l := len(ts.bytes())
		if curLen+l > MaxSectionLength && len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
			curLen = overhead
		}
		cur = append(cur, ts)
		curLen += l
	}
	groups = append(groups, cur)

	out := make([]*PSI, len(groups))
	last := byte(len(groups) - 1)
	for i, g := range groups {
		out[i] = &PSI{
			PointerField:    0x00,
			TableID:         NITActualID,
			SyntaxIndicator: true,
			PrivateBit:      true,
			SyntaxSection: &SyntaxSection{
				TableIDExt:  networkID,
				Version:     0,
				CurrentNext: true,
				Section:     byte(i),
				LastSection: last,
				SpecificData: &NIT{
					NetworkDescriptors: netDescs,
					TransportStreams:   g,
				},
			},
		}
	}
	return out
}
