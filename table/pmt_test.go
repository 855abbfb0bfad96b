package table

import (
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/brinemux/tsmux/packetizer"
)

func TestPMTAutoElectsPCRPID(t *testing.T) {
	s := newTestStream()
	log := (*logging.TestLogger)(t)

	video := packetizer.NewVideoMPEG(68, log)
	if _, err := video.Open(packetizer.Format{Codec: "h264", FrameRate: [2]int{25, 1}, AVCExtradata: []byte{0x01}}); err != nil {
		t.Fatalf("unexpected error opening video input: %v", err)
	}
	video.PCRPeriod = 40 * time.Millisecond
	if _, err := s.AddInput(video); err != nil {
		t.Fatalf("unexpected error adding input: %v", err)
	}

	p := NewPMT(1, 0x1000, s, log)
	p.Rebuild()

	if p.pcrPID != 68 {
		t.Errorf("got PCR PID %d, want 68", p.pcrPID)
	}
	if len(p.sections) != 1 {
		t.Fatalf("expected a single PMT section, got %d", len(p.sections))
	}
}

func TestPMTNoPCRCarrierUsesReservedPID(t *testing.T) {
	s := newTestStream()
	log := (*logging.TestLogger)(t)

	audio := packetizer.NewAudio(69, log)
	if _, err := audio.Open(packetizer.Format{Codec: "mp2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.AddInput(audio); err != nil {
		t.Fatalf("unexpected error adding input: %v", err)
	}

	p := NewPMT(1, 0x1000, s, log)
	p.Rebuild()

	if p.pcrPID != NoPCRPID {
		t.Errorf("got PCR PID %#x, want reserved %#x", p.pcrPID, NoPCRPID)
	}
}

func TestPMTVersionBumpsOnESVersionChange(t *testing.T) {
	s := newTestStream()
	log := (*logging.TestLogger)(t)

	audio := packetizer.NewAudio(69, log)
	if _, err := audio.Open(packetizer.Format{Codec: "mp2", Language: "en"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.AddInput(audio); err != nil {
		t.Fatalf("unexpected error adding input: %v", err)
	}

	p := NewPMT(1, 0x1000, s, log)
	p.Rebuild()
	v0 := p.version

	if _, err := audio.Open(packetizer.Format{Codec: "mp2", Language: "fr"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Rebuild()
	if p.version == v0 {
		t.Errorf("expected PMT version to bump after audio language change")
	}
}
