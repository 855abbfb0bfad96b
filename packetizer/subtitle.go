/*
NAME
  subtitle.go

DESCRIPTION
  subtitle.go implements the dvbs per-input packetizer subtype: DVB
  subtitle streams configured via a "page=lang[/type],..." string, emitting
  a type-0x59 subtitling descriptor with one entry per page.

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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
	"github.com/brinemux/tsmux/container/mts/psi"
)

// DVBSubtitle packetizes DVB subtitle streams. PES length is always
// computed (never set to 0) and ts_delay is forced to 0 since subtitle
// streams are not CBR-shaped, per spec.md §4.1.
type DVBSubtitle struct {
	Base
	pages []subtitlePage
}

type subtitlePage struct {
	lang            string
	typ             byte
	compositionPage uint16
	ancillaryPage   uint16
}

// defaultSubtitlingType is used for a page entry that omits /type.
const defaultSubtitlingType = psi.SubtitlingTypeStandard

func (d *DVBSubtitle) Open(f Format) (bool, error) {
	if f.Codec != "dvbsub" {
		return false, ErrUnsupportedFormat
	}
	pages, err := parsePages(f.Pages)
	if err != nil {
		return false, err
	}
	d.pages = pages
	d.TSDelay = 0
	d.StreamType = mts.StreamTypePrivatePES
	d.StreamID = StreamIDPrivate

	entries := make([]psi.SubtitlingEntry, len(pages))
	for i, p := range pages {
		entries[i] = psi.SubtitlingEntry{
			Lang:            p.lang,
			Type:            p.typ,
			CompositionPage: p.compositionPage,
			AncillaryPage:   p.ancillaryPage,
		}
	}
	desc, err := psi.SubtitlingDescriptor(entries...)
	if err != nil {
		return false, err
	}
	d.Descriptors = append(d.Descriptors, desc.Tag, desc.Len)
	d.Descriptors = append(d.Descriptors, desc.Data...)
	return true, nil
}

// NewDVBSubtitle returns a DVBSubtitle packetizer for pid.
func NewDVBSubtitle(pid uint16, log logging.Logger) *DVBSubtitle {
	return &DVBSubtitle{Base: NewBase(pid, mts.StreamTypePrivatePES, StreamIDPrivate, log)}
}

// PID satisfies registry.Entity.
func (d *DVBSubtitle) PID() uint16 { return d.Base.PID }

func (d *DVBSubtitle) Close() error { return nil }

func (d *DVBSubtitle) Send(au AccessUnit) ([]mts.Packet, error) {
	if au.PTS == InvalidTimestamp {
		return nil, nil
	}
	p := framePES(d.StreamID, au, false)
	buf := p.Bytes(nil)
	pkts := packetizeTS(d.Base.PID, buf, &d.CC, au.RandomAccess, au.Discontinuity, nil)
	d.LastMuxing = ticksToDuration(au.PTS)
	return pkts, nil
}

// parsePages parses "page=lang[/type],page=lang[/type],..." into
// subtitlePage entries, one per comma-separated page clause. page is a
// decimal composition_page_id; ancillary_page_id is set equal to it,
// following the common single-page-carries-both convention DVB encoders
// use when no separate ancillary page is multiplexed.
func parsePages(s string) ([]subtitlePage, error) {
	if s == "" {
		return nil, fmt.Errorf("dvbsub input requires at least one page=lang[/type] entry")
	}
	var pages []subtitlePage
	for _, clause := range strings.Split(s, ",") {
		eq := strings.IndexByte(clause, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed subtitle page clause %q", clause)
		}
		pageNum, err := strconv.ParseUint(clause[:eq], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("malformed subtitle page number in %q: %w", clause, err)
		}
		langType := clause[eq+1:]
		lang := langType
		typ := byte(defaultSubtitlingType)
		if slash := strings.IndexByte(langType, '/'); slash >= 0 {
			lang = langType[:slash]
			t, err := strconv.ParseUint(langType[slash+1:], 0, 8)
			if err != nil {
				return nil, fmt.Errorf("malformed subtitle type in %q: %w", clause, err)
			}
			typ = byte(t)
		}
		if len(lang) != 3 {
			return nil, psi.ErrInvalidLanguageCode
		}
		pages = append(pages, subtitlePage{
			lang:            lang,
			typ:             typ,
			compositionPage: uint16(pageNum),
			ancillaryPage:   uint16(pageNum),
		})
	}
	return pages, nil
}
