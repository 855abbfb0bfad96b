package table

import (
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/container/mts/charset"
	"github.com/brinemux/tsmux/registry"
)

func newTestStream() *registry.Stream {
	params := registry.NewParameters(registry.ConformanceNone, charset.Default, 10*time.Millisecond, 7)
	return registry.NewStream(0x1234, 0x1, params)
}

func TestNewPATDefaultsToAuto(t *testing.T) {
	s := newTestStream()
	p := NewPAT(s, (*logging.TestLogger)(t))
	if !p.Auto {
		t.Errorf("expected auto mode by default")
	}
	if p.PID() != 0 {
		t.Errorf("got PID %d, want PatPid 0", p.PID())
	}
}

func TestPATRebuildManualProgramsEncode(t *testing.T) {
	s := newTestStream()
	p := NewPAT(s, (*logging.TestLogger)(t))
	p.Auto = false
	p.Programs = []Program{{Number: 1, PID: 0x1000}, {Number: 2, PID: 0x1001}}
	p.Rebuild()

	if len(p.sections) != 1 {
		t.Fatalf("expected a single PAT section, got %d", len(p.sections))
	}
	b := p.sections[0].Bytes()
	// pointer/table_id/section_length(4) + table_id_ext/version/section/last(5) + 2 programs*4 + crc(4).
	want := 4 + 5 + 2*4 + 4
	if len(b) != want {
		t.Fatalf("got PAT section length %d, want %d", len(b), want)
	}
	if b[1] != 0x00 {
		t.Errorf("got table_id %#x, want 0x00 for PAT", b[1])
	}
}

func TestPATRebuildVersionBumpsOnChange(t *testing.T) {
	s := newTestStream()
	p := NewPAT(s, (*logging.TestLogger)(t))
	p.Auto = false
	p.Programs = []Program{{Number: 1, PID: 0x1000}}
	p.Rebuild()
	v0 := p.version

	p.Programs = []Program{{Number: 1, PID: 0x1000}, {Number: 2, PID: 0x1001}}
	p.Rebuild()
	if p.version == v0 {
		t.Errorf("expected version to bump on program list change")
	}
}

func TestPATSendNotDueReturnsFalse(t *testing.T) {
	s := newTestStream()
	p := NewPAT(s, (*logging.TestLogger)(t))
	p.Period = time.Second
	p.Programs = []Program{{Number: 1, PID: 0x1000}}
	p.Auto = false

	// LastMuxing starts at 0, so the first emission is due one Period in.
	_, ok := p.Send(time.Second)
	if !ok {
		t.Fatalf("expected first Send to be due")
	}
	_, ok = p.Send(time.Second + 10*time.Millisecond)
	if ok {
		t.Errorf("expected second Send within period to not be due")
	}
}
