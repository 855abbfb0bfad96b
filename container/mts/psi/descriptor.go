/*
NAME
  descriptor.go

DESCRIPTION
  descriptor.go provides constructors for the DVB SI descriptors the mux
  core attaches to PMT elementary streams and SDT/NIT entries: ISO-639
  language, DVB subtitling, service and network name.

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

import (
	"errors"

	"github.com/brinemux/tsmux/container/mts/charset"
)

var ErrInvalidLanguageCode = errors.New("language code must be 3 ISO-639-2 characters")

// AudioType values for the audio portion of an ISO-639 language descriptor,
// per ETSI EN 300 468 table 26.
const (
	AudioTypeUndefined       = 0x00
	AudioTypeCleanEffects    = 0x01
	AudioTypeHearingImpaired = 0x02
	AudioTypeVisualImpaired  = 0x03
)

// LanguageDescriptor builds an ISO_639_language_descriptor for a single
// language/audio-type pair. lang must be a 3-character ISO-639-2 code.
func LanguageDescriptor(lang string, audioType byte) (Descriptor, error) {
	if len(lang) != 3 {
		return Descriptor{}, ErrInvalidLanguageCode
	}
	data := append([]byte(lang), audioType)
	return Descriptor{Tag: LanguageTag, Len: byte(len(data)), Data: data}, nil
}

// Subtitling types, per ETSI EN 300 468 table 28.
const (
	SubtitlingTypeStandard      = 0x10
	SubtitlingTypeHearingImpaired = 0x20
)

// SubtitlingEntry is one entry in a subtitling_descriptor's repeated block.
type SubtitlingEntry struct {
	Lang            string // 3-character ISO-639-2 code.
	Type            byte
	CompositionPage uint16
	AncillaryPage   uint16
}

// SubtitlingDescriptor builds a subtitling_descriptor from one or more
// SubtitlingEntry values.
func SubtitlingDescriptor(entries ...SubtitlingEntry) (Descriptor, error) {
	data := make([]byte, 0, 8*len(entries))
	for _, e := range entries {
		if len(e.Lang) != 3 {
			return Descriptor{}, ErrInvalidLanguageCode
		}
		data = append(data, e.Lang...)
		data = append(data,
			e.Type,
			byte(e.CompositionPage>>8), byte(e.CompositionPage),
			byte(e.AncillaryPage>>8), byte(e.AncillaryPage),
		)
	}
	return Descriptor{Tag: SubtitlingTag, Len: byte(len(data)), Data: data}, nil
}

// Service types, per ETSI EN 300 468 table 81.
const (
	ServiceTypeDigitalTV = 0x01
	ServiceTypeDigitalRadio = 0x02
)

// ServiceDescriptor builds a service_descriptor giving a service's type,
// provider name and service name. Names are encoded with cs (charset.Default
// if the caller has no reason to pick another DVB text table).
func ServiceDescriptor(serviceType byte, provider, name string, cs charset.Charset) (Descriptor, error) {
	p, err := charset.Encode(provider, cs)
	if err != nil {
		return Descriptor{}, err
	}
	n, err := charset.Encode(name, cs)
	if err != nil {
		return Descriptor{}, err
	}
	data := make([]byte, 0, 3+len(p)+len(n))
	data = append(data, serviceType, byte(len(p)))
	data = append(data, p...)
	data = append(data, byte(len(n)))
	data = append(data, n...)
	return Descriptor{Tag: ServiceTag, Len: byte(len(data)), Data: data}, nil
}

// NetworkNameDescriptor builds a network_name_descriptor carrying name,
// encoded with cs.
func NetworkNameDescriptor(name string, cs charset.Charset) (Descriptor, error) {
	data, err := charset.Encode(name, cs)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Tag: NetworkNameTag, Len: byte(len(data)), Data: data}, nil
}
