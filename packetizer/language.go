/*
NAME
  language.go

DESCRIPTION
  language.go provides the ISO-639 1 → 2B → 2T lookup the audio packetizer
  uses to re-derive a three-letter ISO-639-2T code when an input's
  configured language changes, per spec.md §4.1. This table is a domain
  expansion: the distilled spec only names the transform, not the table
  itself, so it is supplied here as a Go map grounded in the ISO-639-2
  registry's well-known 1/2B/2T triples.

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

import "fmt"

// iso6392 holds, for each language with a distinct ISO-639-1 two-letter
// code, its ISO-639-2/B and ISO-639-2/T codes. Most languages have the
// same 2B and 2T code; only the handful the registry lists as differing
// (French, German, Dutch, etc) need the two kept apart.
var iso6392 = map[string]struct{ b, t string }{
	"en": {"eng", "eng"},
	"fr": {"fre", "fra"},
	"de": {"ger", "deu"},
	"nl": {"dut", "nld"},
	"es": {"spa", "spa"},
	"it": {"ita", "ita"},
	"pt": {"por", "por"},
	"ru": {"rus", "rus"},
	"zh": {"chi", "zho"},
	"ja": {"jpn", "jpn"},
	"ko": {"kor", "kor"},
	"ar": {"ara", "ara"},
	"cs": {"cze", "ces"},
	"el": {"gre", "ell"},
	"ro": {"rum", "ron"},
	"sq": {"alb", "sqi"},
	"hy": {"arm", "hye"},
	"eu": {"baq", "eus"},
	"my": {"bur", "mya"},
	"ka": {"geo", "kat"},
	"is": {"ice", "isl"},
	"mk": {"mac", "mkd"},
	"mi": {"mao", "mri"},
	"ms": {"may", "msa"},
	"bo": {"tib", "bod"},
	"cy": {"wel", "cym"},
	"sk": {"slo", "slk"},
	"fa": {"per", "fas"},
	"sw": {"swa", "swa"},
	"hi": {"hin", "hin"},
	"pl": {"pol", "pol"},
	"sv": {"swe", "swe"},
	"da": {"dan", "dan"},
	"no": {"nor", "nor"},
	"fi": {"fin", "fin"},
	"tr": {"tur", "tur"},
	"th": {"tha", "tha"},
	"vi": {"vie", "vie"},
	"uk": {"ukr", "ukr"},
	"he": {"heb", "heb"},
	"id": {"ind", "ind"},
	"hu": {"hun", "hun"},
	"bg": {"bul", "bul"},
	"hr": {"hrv", "hrv"},
	"sr": {"srp", "srp"},
}

// already2T reports whether code is a known 3-letter 2T code, so that
// ToISO6392T is the identity function on codes already in the target form.
func already2T(code string) bool {
	for _, v := range iso6392 {
		if v.t == code {
			return true
		}
	}
	return false
}

// already2BDistinctFromT reports whether code is a known 3-letter 2B code
// that differs from its 2T form, and returns that 2T form.
func already2BDistinctFromT(code string) (t string, ok bool) {
	for _, v := range iso6392 {
		if v.b == code && v.b != v.t {
			return v.t, true
		}
	}
	return "", false
}

// ToISO6392T resolves lang, which may be a 2-letter ISO-639-1 code, an
// ISO-639-2/B code, or an ISO-639-2/T code already, to its ISO-639-2/T
// three-letter form.
func ToISO6392T(lang string) (string, error) {
	switch len(lang) {
	case 2:
		v, ok := iso6392[lang]
		if !ok {
			return "", fmt.Errorf("unknown ISO-639-1 code %q", lang)
		}
		return v.t, nil
	case 3:
		if t, ok := already2BDistinctFromT(lang); ok {
			return t, nil
		}
		if already2T(lang) {
			return lang, nil
		}
		return "", fmt.Errorf("unknown ISO-639-2 code %q", lang)
	default:
		return "", fmt.Errorf("language code must be 2 or 3 characters, got %q", lang)
	}
}
