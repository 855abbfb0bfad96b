package packetizer

import (
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts"
)

func TestFramePESLength(t *testing.T) {
	au := AccessUnit{PTS: 1000, DTS: 1000, Data: make([]byte, 100)}
	p := framePES(StreamIDVideo, au, true)
	want := uint16(100 + 5 + 3)
	if p.Length != want {
		t.Errorf("got length %d, want %d", p.Length, want)
	}
	if p.PDI != 0x2 {
		t.Errorf("got PDI %#x, want PTS-only for equal PTS/DTS", p.PDI)
	}
}

func TestFramePESWithDTS(t *testing.T) {
	au := AccessUnit{PTS: 2000, DTS: 1000, Data: make([]byte, 10)}
	p := framePES(StreamIDVideo, au, true)
	if p.PDI != 0x3 {
		t.Errorf("got PDI %#x, want PTS_DTS when PTS != DTS", p.PDI)
	}
	if p.HeaderLength != 10 {
		t.Errorf("got header length %d, want 10", p.HeaderLength)
	}
}

func TestPacketizeTSFirstPacketFlags(t *testing.T) {
	cc := byte(0)
	pcr := uint64(12345)
	pesBytes := make([]byte, 500)
	pkts := packetizeTS(68, pesBytes, &cc, true, false, &pcr)
	if len(pkts) < 2 {
		t.Fatalf("expected multiple TS packets for 500 bytes of PES")
	}
	if !pkts[0].PUSI {
		t.Errorf("first packet must set PUSI")
	}
	if !pkts[0].RAI || !pkts[0].PCRF || pkts[0].PCR != pcr {
		t.Errorf("first packet must carry RAI and PCR: %+v", pkts[0])
	}
	if pkts[1].PUSI {
		t.Errorf("second packet must not set PUSI")
	}
	for i, p := range pkts {
		if len(p.Bytes(nil)) != mts.PacketSize {
			t.Errorf("packet %d: got size %d, want %d", i, len(p.Bytes(nil)), mts.PacketSize)
		}
	}
}

func TestPacketizeTSContinuityCounter(t *testing.T) {
	cc := byte(14)
	pesBytes := make([]byte, 600)
	pkts := packetizeTS(68, pesBytes, &cc, false, false, nil)
	for i, p := range pkts {
		want := byte((14 + i) & 0xF)
		if p.CC != want {
			t.Errorf("packet %d: got CC %d, want %d", i, p.CC, want)
		}
	}
}

func TestVideoMPEGOpenRejectsWrongCodec(t *testing.T) {
	v := NewVideoMPEG(68, (*logging.TestLogger)(t))
	_, err := v.Open(Format{Codec: "aac"})
	if err != ErrUnsupportedFormat {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestVideoMPEGOpenRequiresExtradata(t *testing.T) {
	v := NewVideoMPEG(68, (*logging.TestLogger)(t))
	_, err := v.Open(Format{Codec: "h264", FrameRate: [2]int{25, 1}})
	if err == nil {
		t.Errorf("expected error for missing AVC extradata")
	}
}

func TestAudioDropsInvalidPTS(t *testing.T) {
	a := NewAudio(69, (*logging.TestLogger)(t))
	a.Open(Format{Codec: "mp2"})
	pkts, err := a.Send(AccessUnit{PTS: InvalidTimestamp})
	if err != nil || pkts != nil {
		t.Errorf("expected (nil, nil) for invalid PTS, got (%v, %v)", pkts, err)
	}
}

func TestAudioLanguageDescriptorRewrite(t *testing.T) {
	a := NewAudio(69, (*logging.TestLogger)(t))
	if _, err := a.Open(Format{Codec: "mp2", Language: "en"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.lang != "eng" {
		t.Errorf("got lang %q, want eng", a.lang)
	}
	v0 := a.ESVersion
	if err := a.setLanguage("fr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.lang != "fra" {
		t.Errorf("got lang %q, want fra", a.lang)
	}
	if a.ESVersion != v0+1 {
		t.Errorf("expected ESVersion to bump on language change")
	}
}

func TestParsePagesDefaultType(t *testing.T) {
	pages, err := parsePages("1=eng")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].lang != "eng" || pages[0].typ != defaultSubtitlingType {
		t.Errorf("got %+v", pages)
	}
}

func TestParsePagesMultiple(t *testing.T) {
	pages, err := parsePages("1=eng/0x20,2=fra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 || pages[0].typ != 0x20 || pages[1].typ != defaultSubtitlingType {
		t.Errorf("got %+v", pages)
	}
}

func TestToISO6392T(t *testing.T) {
	cases := []struct{ in, want string }{
		{"en", "eng"},
		{"fr", "fra"},
		{"fre", "fra"},
		{"fra", "fra"},
	}
	for _, c := range cases {
		got, err := ToISO6392T(c.in)
		if err != nil {
			t.Errorf("ToISO6392T(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ToISO6392T(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestADTSHeaderLength(t *testing.T) {
	a := NewAudio(70, (*logging.TestLogger)(t))
	a.asc = []byte{0x12, 0x10} // AAC-LC, 44.1kHz, stereo.
	a.setADTSParams()          // As Open does for an AAC input.
	h := a.adtsHeader(100)
	if len(h) != 7 {
		t.Fatalf("got header length %d, want 7", len(h))
	}
	if h[0] != 0xFF || h[1] != 0xF1 {
		t.Errorf("got sync bytes %#x %#x, want 0xFF 0xF1", h[0], h[1])
	}
}
