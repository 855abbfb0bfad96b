/*
NAME
  si.go

DESCRIPTION
  si.go extends the psi package's PSI/SyntaxSection model, originally built
  for PAT and PMT, to the DVB service information (SI) tables the mux core
  also emits: SDT, NIT and TDT.

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

// Table IDs for the SI tables, per ETSI EN 300 468.
const (
	SDTActualID = 0x42
	SDTOtherID  = 0x46
	NITActualID = 0x40
	NITOtherID  = 0x41
	TDTID       = 0x70
)

// Descriptor tags used by the SI tables this mux emits.
const (
	NetworkNameTag = 0x40
	ServiceTag     = 0x48
	LanguageTag    = 0x0A
	SubtitlingTag  = 0x59
)

// NewSDTPSI returns a PSI wrapping an empty SDT, actual transport stream
// variant, ready to have services appended before Bytes is called.
func NewSDTPSI(tsid uint16) *PSI {
	return &PSI{
		PointerField:    0x00,
		TableID:         SDTActualID,
		SyntaxIndicator: true,
		PrivateBit:      true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:  tsid,
			Version:     0,
			CurrentNext: true,
			Section:     0,
			LastSection: 0,
			SpecificData: &SDT{
				OriginalNetworkID: 0,
			},
		},
	}
}

// NewNITPSI returns a PSI wrapping an empty NIT, actual network variant.
func NewNITPSI(networkID uint16) *PSI {
	return &PSI{
		PointerField:    0x00,
		TableID:         NITActualID,
		SyntaxIndicator: true,
		PrivateBit:      true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:  networkID,
			Version:     0,
			CurrentNext: true,
			Section:     0,
			LastSection: 0,
			SpecificData: &NIT{},
		},
	}
}

// SDTService describes one service entry in an SDT's service loop,
// implementing the repeated "service()" structure of ETSI EN 300 468
// section 5.2.3.
type SDTService struct {
	ServiceID          uint16
	EITScheduleFlag    bool
	EITPresentFollowFlag bool
	RunningStatus      byte // 3 bits
	FreeCAMode         bool
	Descriptors        []Descriptor
}

func (s *SDTService) descLen() uint16 {
	var l uint16
	for _, d := range s.Descriptors {
		l += uint16(2 + len(d.Data))
	}
	return l
}

func (s *SDTService) bytes() []byte {
	dl := s.descLen()
	out := make([]byte, 3)
	out[0] = byte(s.ServiceID >> 8)
	out[1] = byte(s.ServiceID)
	out[2] = 0xFC | asByte(s.EITScheduleFlag)<<1 | asByte(s.EITPresentFollowFlag)
	out = append(out, byte(s.RunningStatus<<5)|asByte(s.FreeCAMode)<<4|byte(dl>>8)&0x0F, byte(dl))
	for _, d := range s.Descriptors {
		out = append(out, d.Bytes()...)
	}
	return out
}

// SDT implements SpecificData for the service description table.
type SDT struct {
	OriginalNetworkID uint16
	Services          []SDTService
}

// Bytes outputs a byte slice representation of the SDT specific data,
// following the SyntaxSection's table_id_extension/version/section header.
func (s *SDT) Bytes() []byte {
	out := make([]byte, 3)
	out[0] = byte(s.OriginalNetworkID >> 8)
	out[1] = byte(s.OriginalNetworkID)
	out[2] = 0xFF // reserved_future_use
	for _, svc := range s.Services {
		out = append(out, svc.bytes()...)
	}
	return out
}

// NITTransportStream describes one entry in an NIT's transport stream loop,
// per ETSI EN 300 468 section 5.2.1.
type NITTransportStream struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptors       []Descriptor
}

func (t *NITTransportStream) descLen() uint16 {
	var l uint16
	for _, d := range t.Descriptors {
		l += uint16(2 + len(d.Data))
	}
	return l
}

func (t *NITTransportStream) bytes() []byte {
	dl := t.descLen()
	out := make([]byte, 6)
	out[0] = byte(t.TransportStreamID >> 8)
	out[1] = byte(t.TransportStreamID)
	out[2] = byte(t.OriginalNetworkID >> 8)
	out[3] = byte(t.OriginalNetworkID)
	out[4] = 0xF0 | byte(dl>>8)&0x0F
	out[5] = byte(dl)
	for _, d := range t.Descriptors {
		out = append(out, d.Bytes()...)
	}
	return out
}

// NIT implements SpecificData for the network information table.
type NIT struct {
	NetworkDescriptors []Descriptor
	TransportStreams   []NITTransportStream
}

// Bytes outputs a byte slice representation of the NIT specific data.
func (n *NIT) Bytes() []byte {
	var ndl uint16
	for _, d := range n.NetworkDescriptors {
		ndl += uint16(2 + len(d.Data))
	}
	out := make([]byte, 2)
	out[0] = 0xF0 | byte(ndl>>8)&0x0F
	out[1] = byte(ndl)
	for _, d := range n.NetworkDescriptors {
		out = append(out, d.Bytes()...)
	}

	var tsl uint16
	for _, t := range n.TransportStreams {
		tsl += uint16(len(t.bytes()))
	}
	out = append(out, byte(0xF0|byte(tsl>>8)&0x0F), byte(tsl))
	for _, t := range n.TransportStreams {
		out = append(out, t.bytes()...)
	}
	return out
}

// TDT is the time and date table. Unlike PAT/PMT/SDT/NIT it carries no
// syntax section or CRC (ETSI EN 300 468 section 5.2.5): it is a bare
// table_id, section_length and a single 40-bit UTC time field, so it is
// built and emitted standalone rather than wrapped in a PSI/SyntaxSection.
type TDT struct {
	UTCTime uint64 // 40-bit MJD+BCD encoded UTC time, per EN 300 468 annex C.
}

// Bytes outputs the complete TDT section (table_id through the 5-byte UTC
// time field), with no syntax section and no trailing CRC.
func (t *TDT) Bytes() []byte {
	out := make([]byte, 3, 8)
	out[0] = TDTID
	out[1] = 0x70 | 0x00 // section_syntax_indicator=0, reserved bits, section_length hi nibble
	out[2] = 5
	for i := 32; i >= 0; i -= 8 {
		out = append(out, byte(t.UTCTime>>uint(i)))
	}
	return out
}
