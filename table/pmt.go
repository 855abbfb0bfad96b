/*
NAME
  pmt.go

DESCRIPTION
  pmt.go implements the PMT table packetizer: auto mode enumerates input
  packetizers (excluding any past autodelete_delay), elects the PCR PID as
  the first input with pcr_period > 0 (else 0x1FFF), and bumps version on
  any (PID, es_version) set change or PCR PID change. Manual mode takes a
  configured PID list but still tracks es_version per PID so language or
  format changes bump the version.

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

// esInfo is implemented by every per-input packetizer (packetizer.Base),
// giving the PMT builder stream_type/PID/es_version/descriptors without an
// import cycle back to package packetizer.
type esInfo interface {
	ESInfo() (streamType byte, pid uint16, esVersion uint32, descriptors []byte)
}

// pcrPeriodHolder is implemented by per-input packetizers exposing whether
// they carry PCR, used for PCR PID election.
type pcrPeriodHolder interface {
	PCRPeriodOf() time.Duration
}

// esState is one (PID, es_version) pair tracked for PMT dirtying.
type esState struct {
	PID       uint16
	ESVersion uint32
}

// NoPCRPID is the reserved PID signalling "no PCR carried in this program",
// per ISO/IEC 13818-1.
const NoPCRPID = 0x1FFF

// PMT is the PMT table packetizer for one program.
type PMT struct {
	Base

	Auto           bool
	ProgramNumber  uint16
	ManualPIDs     []uint16 // Manual mode: configured elementary-stream PIDs.
	AutodeleteDelay time.Duration

	// ServiceName/ServiceProvider/ServiceType are this program's SDT
	// service identity, read by SDT.Rebuild's auto mode via ServiceInfo.
	ServiceName     string
	ServiceProvider string
	ServiceType     byte

	pcrPID  uint16
	esState []esState
	version byte
	lastNow time.Duration // Set by Send before Rebuild, for autodelete_delay evaluation.
}

// NewPMT returns a PMT table packetizer at pid for programNumber.
func NewPMT(programNumber, pid uint16, stream *registry.Stream, log logging.Logger) *PMT {
	p := &PMT{
		Base:          NewBase("PMT", pid, stream, log),
		Auto:          true,
		ProgramNumber: programNumber,
		pcrPID:        NoPCRPID,
	}
	p.DefinesProgram = true
	p.ProgramNumber = programNumber
	return p
}

func (p *PMT) PID() uint16 { return p.Base.PID }

// ProgramInfo satisfies the interface PAT.Rebuild uses to enumerate
// program-defining table packetizers.
func (p *PMT) ProgramInfo() (number, pid uint16, defines bool) {
	return p.ProgramNumber, p.Base.PID, p.DefinesProgram
}

// ServiceInfo satisfies the interface SDT.Rebuild's auto mode uses to
// derive one service entry per program.
func (p *PMT) ServiceInfo() (name, provider string, serviceType byte) {
	return p.ServiceName, p.ServiceProvider, p.ServiceType
}

// candidateInputs returns the registry's current inputs that satisfy
// esInfo, excluding any whose last muxing time is older than
// now-AutodeleteDelay when AutodeleteDelay > 0.
func (p *PMT) candidateInputs(now time.Duration) []esInfo {
	var out []esInfo
	for _, e := range p.Stream.Inputs() {
		info, ok := e.(esInfo)
		if !ok {
			continue
		}
		if p.AutodeleteDelay > 0 {
			type lastMuxed interface{ LastMuxedAt() time.Duration }
			if lm, ok := e.(lastMuxed); ok && lm.LastMuxedAt() < now-p.AutodeleteDelay {
				continue
			}
		}
		out = append(out, info)
	}
	return out
}

// Rebuild recomputes the elementary stream list (auto mode) and PCR PID,
// re-serializing the PMT section. Version increments on any (PID,
// es_version) set change or PCR PID change.
func (p *PMT) Rebuild() {
	var states []esState
	var entries []psi.StreamSpecificData
	pcrPID := uint16(NoPCRPID)

	if p.Auto {
		for _, in := range p.candidateInputs(p.lastNow) {
			st, pid, ver, desc := in.ESInfo()
			states = append(states, esState{PID: pid, ESVersion: ver})
			entries = append(entries, specificDataFor(st, pid, desc))
			if pcrPID == NoPCRPID {
				if h, ok := in.(pcrPeriodHolder); ok && h.PCRPeriodOf() > 0 {
					pcrPID = pid
				}
			}
		}
	} else {
		byPID := make(map[uint16]esInfo)
		for _, e := range p.Stream.Inputs() {
			if info, ok := e.(esInfo); ok {
				_, pid, _, _ := info.ESInfo()
				byPID[pid] = info
			}
		}
		for _, pid := range p.ManualPIDs {
			in, ok := byPID[pid]
			if !ok {
				continue
			}
			st, _, ver, desc := in.ESInfo()
			states = append(states, esState{PID: pid, ESVersion: ver})
			entries = append(entries, specificDataFor(st, pid, desc))
			if pcrPID == NoPCRPID {
				if h, ok := in.(pcrPeriodHolder); ok && h.PCRPeriodOf() > 0 {
					pcrPID = pid
				}
			}
		}
	}

	sort.Slice(states, func(i, j int) bool { return states[i].PID < states[j].PID })
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })

	if !sameESState(p.esState, states) || pcrPID != p.pcrPID {
		p.version = (p.version + 1) % 32
	}
	p.esState = states
	p.pcrPID = pcrPID

	pmtPSI := psi.NewPMTPSI()
	ss := pmtPSI.SyntaxSection
	ss.TableIDExt = p.ProgramNumber
	ss.Version = p.version
	ss.CurrentNext = true
	pmt := ss.SpecificData.(*psi.PMT)
	pmt.ProgramClockPID = p.pcrPID
	pmt.Descriptors = nil
	pmt.ProgramInfoLen = 0
	pmt.StreamSpecificData = nil
	pmt.ElementaryStreams = entries
	p.sections = []*psi.PSI{pmtPSI}
}

// specificDataFor builds one elementary-stream entry for the PMT's
// StreamSpecificData chain.
func specificDataFor(streamType byte, pid uint16, descriptors []byte) psi.StreamSpecificData {
	descs := parseRawDescriptors(descriptors)
	var l uint16
	for _, d := range descs {
		l += uint16(2 + len(d.Data))
	}
	return psi.StreamSpecificData{
		StreamType:    streamType,
		PID:           pid,
		StreamInfoLen: l,
		Descriptors:   descs,
	}
}

// parseRawDescriptors splits a concatenated tag/len/data descriptor blob
// (as carried in packetizer.Base.Descriptors) back into psi.Descriptor
// values.
func parseRawDescriptors(raw []byte) []psi.Descriptor {
	var out []psi.Descriptor
	for i := 0; i+2 <= len(raw); {
		tag, l := raw[i], int(raw[i+1])
		if i+2+l > len(raw) {
			break
		}
		out = append(out, psi.Descriptor{Tag: tag, Len: byte(l), Data: raw[i+2 : i+2+l]})
		i += 2 + l
	}
	return out
}

func sameESState(a, b []esState) bool {
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

// Send produces TS packets for the PMT if due.
func (p *PMT) Send(now time.Duration) ([]mts.Packet, bool) {
	p.lastNow = now
	if p.sections == nil {
		p.Rebuild()
	}
	if !p.due(now, func(time.Duration) (time.Duration, bool) { return 0, false }, p.Stream.Params.MaxPrepare) {
		return nil, false
	}
	return p.buildPackets(now, p.Stream.Params.PacketInterval), true
}
