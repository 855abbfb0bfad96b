/*
NAME
  sdt.go

DESCRIPTION
  sdt.go implements the SDT table packetizer: auto mode emits one service
  entry per PMT-defining table packetizer with program_number != 0; manual
  mode parses "[sid=]name/provider/type[:...]" directly. A service
  descriptor (tag 0x48) is attached only when name or provider is
  non-empty.

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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/charset"
	"github.com/brinemux/tsmux/container/mts/psi"
	"github.com/brinemux/tsmux/registry"
)

// Service describes one SDT service entry.
type Service struct {
	ID       uint16
	Name     string
	Provider string
	Type     byte
}

// SDT is the SDT table packetizer, carried on mts.SdtPid.
type SDT struct {
	Base

	Auto              bool
	Manual            []Service // Used when Auto is false.
	OriginalNetworkID uint16
	Charset           charset.Charset

	version  byte
	lastSvcs []Service
}

// NewSDT returns an SDT table packetizer.
func NewSDT(stream *registry.Stream, log logging.Logger) *SDT {
	return &SDT{Base: NewBase("SDT", mts.SdtPid, stream, log), Auto: true}
}

func (s *SDT) PID() uint16 { return s.Base.PID }

// ParseManualServices parses "[sid=]name/provider/type[:...]" into Service
// entries. sid defaults to its position in the list (1-based) when omitted.
func ParseManualServices(spec string) ([]Service, error) {
	var out []Service
	for i, clause := range strings.Split(spec, ":") {
		sid := uint16(i + 1)
		rest := clause
		if eq := strings.IndexByte(clause, '='); eq >= 0 {
			n, err := strconv.ParseUint(clause[:eq], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("malformed sdt service id in %q: %w", clause, err)
			}
			sid = uint16(n)
			rest = clause[eq+1:]
		}
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed sdt service clause %q, want name/provider/type", clause)
		}
		typ, err := strconv.ParseUint(parts[2], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("malformed sdt service type in %q: %w", clause, err)
		}
		out = append(out, Service{ID: sid, Name: parts[0], Provider: parts[1], Type: byte(typ)})
	}
	return out, nil
}

// Rebuild recomputes the SDT's service list (auto mode) and re-serializes
// its sections, splitting via psi.SplitSDT when the service loop overflows
// one section.
func (s *SDT) Rebuild() {
	var services []Service
	if s.Auto {
		for _, e := range s.Stream.Tables() {
			t, ok := e.(interface {
				ProgramInfo() (uint16, uint16, bool)
			})
			if !ok {
				continue
			}
			num, _, defines := t.ProgramInfo()
			if !defines || num == 0 {
				continue
			}
			sv, ok := e.(interface{ ServiceInfo() (string, string, byte) })
			var name, provider string
			var typ byte = psi.ServiceTypeDigitalTV
			if ok {
				name, provider, typ = sv.ServiceInfo()
			}
			services = append(services, Service{ID: num, Name: name, Provider: provider, Type: typ})
		}
	} else {
		services = s.Manual
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })

	if !sameServices(s.lastSvcs, services) {
		s.version = (s.version + 1) % 32
	}
	s.lastSvcs = services

	entries := make([]psi.SDTService, len(services))
	for i, svc := range services {
		var descs []psi.Descriptor
		if svc.Name != "" || svc.Provider != "" {
			d, err := psi.ServiceDescriptor(svc.Type, svc.Provider, svc.Name, s.Charset)
			if err == nil {
				descs = append(descs, d)
			} else {
				s.log.Warning("sdt: could not encode service descriptor", "service", svc.ID, "error", err)
			}
		}
		entries[i] = psi.SDTService{
			ServiceID:            svc.ID,
			EITPresentFollowFlag: false,
			RunningStatus:        4, // running.
			FreeCAMode:           false,
			Descriptors:          descs,
		}
	}

	s.sections = psi.SplitSDT(s.Stream.TSID, s.OriginalNetworkID, entries)
	for _, sec := range s.sections {
		sec.SyntaxSection.Version = s.version
	}
}

func sameServices(a, b []Service) bool {
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

// Send produces TS packets for the SDT if due.
func (s *SDT) Send(now time.Duration) ([]mts.Packet, bool) {
	if s.sections == nil {
		s.Rebuild()
	}
	if !s.due(now, func(time.Duration) (time.Duration, bool) { return 0, false }, s.Stream.Params.MaxPrepare) {
		return nil, false
	}
	return s.buildPackets(now, s.Stream.Params.PacketInterval), true
}
