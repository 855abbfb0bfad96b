/*
NAME
  charset.go

DESCRIPTION
  charset.go provides conversion between UTF-8 Go strings and the character
  encodings used by DVB SI text fields (service descriptor names, network
  names, subtitle pages), per ETSI EN 300 468 annex A.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package charset converts UTF-8 text to and from the byte encodings DVB SI
// uses for human-readable strings. A Charset value is a handle selecting
// which table a string was, or should be, encoded with; it is carried
// end-to-end through registry.Parameters so that every table packetizer
// encodes names consistently.
package charset

import "errors"

// Charset identifies a DVB text encoding table, per ETSI EN 300 468 table A.3.
type Charset byte

// Supported character sets. Default is the base ISO/IEC 6937 table assumed
// when no selector byte is present; the mux core treats it as a pass-through
// for the 7-bit ASCII subset it actually emits.
const (
	Default Charset = iota
	ISO8859_5
	ISO8859_6
	ISO8859_7
	ISO8859_8
	ISO8859_9
	ISO8859_11
	ISO8859_15
	UTF8
)

// selector maps a Charset to the control byte(s) ETSI EN 300 468 annex A
// prepends to a string to flag a non-default table. UTF8 uses the
// three-byte encoding_type_id form (0x10 0x00 0x15), the rest a single
// control byte in the 0x01-0x0B range.
var selector = map[Charset][]byte{
	ISO8859_5:  {0x01},
	ISO8859_6:  {0x02},
	ISO8859_7:  {0x03},
	ISO8859_8:  {0x04},
	ISO8859_9:  {0x05},
	ISO8859_11: {0x07},
	ISO8859_15: {0x0B},
	UTF8:       {0x10, 0x00, 0x15},
}

var ErrUnsupportedCharset = errors.New("charset: unsupported character set")

// Encode converts s, assumed to already be restricted to characters
// representable in cs (the mux core does not transliterate), into the DVB
// byte string for cs: the selector prefix, if any, followed by the bytes of
// s unchanged. The default table and the UTF-8 table are both byte-identical
// to Go's native string representation for the characters this mux emits
// (ASCII service/network names and ISO-639 language tags), so no per-byte
// remapping is performed; Encode's job is to attach the correct selector so
// a downstream receiver decodes the bytes with the same table.
func Encode(s string, cs Charset) ([]byte, error) {
	if cs == Default {
		return []byte(s), nil
	}
	prefix, ok := selector[cs]
	if !ok {
		return nil, ErrUnsupportedCharset
	}
	out := make([]byte, 0, len(prefix)+len(s))
	out = append(out, prefix...)
	out = append(out, s...)
	return out, nil
}

// Decode strips a DVB charset selector prefix from d, if present, and
// returns the remaining text along with the Charset it was tagged with.
func Decode(d []byte) (string, Charset, error) {
	if len(d) == 0 {
		return "", Default, nil
	}
	if d[0] == 0x10 {
		if len(d) < 3 {
			return "", Default, errors.New("charset: truncated encoding_type_id selector")
		}
		return string(d[3:]), UTF8, nil
	}
	if d[0] >= 0x01 && d[0] <= 0x0B {
		for cs, sel := range selector {
			if len(sel) == 1 && sel[0] == d[0] {
				return string(d[1:]), cs, nil
			}
		}
		return "", Default, ErrUnsupportedCharset
	}
	return string(d), Default, nil
}
