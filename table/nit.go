/*
NAME
  nit.go

DESCRIPTION
  nit.go implements the NIT table packetizer: a single transport stream
  entry describing this multiplex, with a configurable network name
  descriptor. Nothing here checks the conformance profile: a registered
  NIT is emitted under any profile. The table itself has no auto/manual
  distinction since a mux describes exactly one transport stream.

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
	"github.com/brinemux/tsmux/container/mts/charset"
	"github.com/brinemux/tsmux/container/mts/psi"
	"github.com/brinemux/tsmux/registry"
)

// NIT is the NIT table packetizer, carried on mts.NitPid.
type NIT struct {
	Base

	NetworkID   uint16
	NetworkName string
	Charset     charset.Charset

	version     byte
	lastName    string
}

// NewNIT returns a NIT table packetizer.
func NewNIT(stream *registry.Stream, log logging.Logger) *NIT {
	return &NIT{Base: NewBase("NIT", mts.NitPid, stream, log)}
}

func (n *NIT) PID() uint16 { return n.Base.PID }

// Rebuild re-serializes the NIT's single-transport-stream section.
func (n *NIT) Rebuild() {
	if n.NetworkName != n.lastName {
		n.version = (n.version + 1) % 32
		n.lastName = n.NetworkName
	}

	var netDescs []psi.Descriptor
	if n.NetworkName != "" {
		d, err := psi.NetworkNameDescriptor(n.NetworkName, n.Charset)
		if err != nil {
			n.log.Warning("nit: could not encode network name descriptor", "error", err)
		} else {
			netDescs = append(netDescs, d)
		}
	}

	streams := []psi.NITTransportStream{{
		TransportStreamID: n.Stream.TSID,
		OriginalNetworkID: n.NetworkID,
	}}
	n.sections = psi.SplitNIT(n.NetworkID, netDescs, streams)
	for _, sec := range n.sections {
		sec.SyntaxSection.Version = n.version
	}
}

// Send produces TS packets for the NIT if due.
func (n *NIT) Send(now time.Duration) ([]mts.Packet, bool) {
	if n.sections == nil {
		n.Rebuild()
	}
	if !n.due(now, func(time.Duration) (time.Duration, bool) { return 0, false }, n.Stream.Params.MaxPrepare) {
		return nil, false
	}
	return n.buildPackets(now, n.Stream.Params.PacketInterval), true
}
