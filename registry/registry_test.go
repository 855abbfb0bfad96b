package registry

import (
	"testing"
	"time"

	"github.com/brinemux/tsmux/container/mts/charset"
)

type fakeEntity struct {
	pid     uint16
	deleted bool
}

func (f *fakeEntity) PID() uint16   { return f.pid }
func (f *fakeEntity) Deleted() bool { return f.deleted }

func TestNewParametersClampsMaxPrepare(t *testing.T) {
	p := NewParameters(ConformanceDVB, charset.Default, 50*time.Millisecond, 7)
	if p.MaxPrepare != maxPrepareCeiling {
		t.Errorf("got MaxPrepare %v, want %v", p.MaxPrepare, maxPrepareCeiling)
	}
}

func TestNewParametersUnclamped(t *testing.T) {
	p := NewParameters(ConformanceNone, charset.Default, time.Millisecond, 7)
	want := 7 * time.Millisecond
	if p.MaxPrepare != want {
		t.Errorf("got MaxPrepare %v, want %v", p.MaxPrepare, want)
	}
}

func TestAddInputRejectsDuplicatePID(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	if _, err := s.AddInput(&fakeEntity{pid: 68}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.AddInput(&fakeEntity{pid: 68}); err != ErrPIDInUse {
		t.Errorf("got %v, want ErrPIDInUse", err)
	}
}

func TestAddTableRejectsInputPID(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	if _, err := s.AddInput(&fakeEntity{pid: 68}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.AddTable(&fakeEntity{pid: 68}); err != ErrPIDInUse {
		t.Errorf("got %v, want ErrPIDInUse", err)
	}
}

func TestInputsOrderedByInsertion(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	s.AddInput(&fakeEntity{pid: 68})
	s.AddInput(&fakeEntity{pid: 69})
	got := s.Inputs()
	if len(got) != 2 || got[0].PID() != 68 || got[1].PID() != 69 {
		t.Errorf("got %v, want PIDs [68 69]", got)
	}
}

func TestRemoveInputThenCompact(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	h, _ := s.AddInput(&fakeEntity{pid: 68, deleted: true})
	if err := s.RemoveInput(h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Inputs()) != 0 {
		t.Errorf("expected removed input to be absent from live list")
	}
	s.Compact(map[Handle]bool{h: true})
	if _, err := s.Input(h); err != ErrUnknownHandle {
		t.Errorf("got %v, want ErrUnknownHandle after compaction", err)
	}
}

func TestStreamVersionBumpsOnAdd(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	v0 := s.StreamVersion()
	s.AddInput(&fakeEntity{pid: 68})
	if s.StreamVersion() != v0+1 {
		t.Errorf("got version %d, want %d", s.StreamVersion(), v0+1)
	}
}

func TestNextRAP(t *testing.T) {
	s := NewStream(1, 0xFFFF, Parameters{})
	s.SetRAPs([]time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond})
	r, ok := s.NextRAP(15 * time.Millisecond)
	if !ok || r != 20*time.Millisecond {
		t.Errorf("got (%v, %v), want (20ms, true)", r, ok)
	}
	_, ok = s.NextRAP(31 * time.Millisecond)
	if ok {
		t.Errorf("expected no RAP after the last one")
	}
}
