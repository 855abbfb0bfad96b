package table

import (
	"testing"

	"github.com/ausocean/utils/logging"
)

func TestParseManualServicesDefaultsSID(t *testing.T) {
	svcs, err := ParseManualServices("My Service/My Provider/0x01:Second/Provider Two/0x02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svcs) != 2 {
		t.Fatalf("got %d services, want 2", len(svcs))
	}
	if svcs[0].ID != 1 || svcs[1].ID != 2 {
		t.Errorf("got ids %d, %d, want 1, 2", svcs[0].ID, svcs[1].ID)
	}
	if svcs[0].Name != "My Service" || svcs[0].Provider != "My Provider" {
		t.Errorf("got %+v", svcs[0])
	}
}

func TestParseManualServicesExplicitSID(t *testing.T) {
	svcs, err := ParseManualServices("5=News/Broadcaster/0x01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svcs[0].ID != 5 {
		t.Errorf("got id %d, want 5", svcs[0].ID)
	}
}

func TestSDTManualModeEncodesServices(t *testing.T) {
	s := newTestStream()
	sdt := NewSDT(s, (*logging.TestLogger)(t))
	sdt.Auto = false
	sdt.Manual = []Service{{ID: 1, Name: "Test", Provider: "AusOcean", Type: 0x01}}
	sdt.Rebuild()

	if len(sdt.sections) != 1 {
		t.Fatalf("expected a single SDT section, got %d", len(sdt.sections))
	}
	b := sdt.sections[0].Bytes()
	if b[1] != 0x42 {
		t.Errorf("got table_id %#x, want 0x42 (SDT actual)", b[1])
	}
}

func TestSDTAutoModeDerivesServiceFromPMT(t *testing.T) {
	s := newTestStream()
	log := (*logging.TestLogger)(t)

	pmt := NewPMT(1, 0x1000, s, log)
	pmt.ServiceName = "AusOcean TV"
	pmt.ServiceProvider = "AusOcean"
	pmt.ServiceType = 0x01
	if _, err := s.AddTable(pmt); err != nil {
		t.Fatalf("unexpected error adding pmt table: %v", err)
	}

	sdt := NewSDT(s, log)
	sdt.Rebuild()

	if len(sdt.lastSvcs) != 1 {
		t.Fatalf("got %d services, want 1", len(sdt.lastSvcs))
	}
	if sdt.lastSvcs[0].Name != "AusOcean TV" || sdt.lastSvcs[0].ID != 1 {
		t.Errorf("got %+v", sdt.lastSvcs[0])
	}
}

func TestSDTVersionBumpsOnServiceListChange(t *testing.T) {
	s := newTestStream()
	sdt := NewSDT(s, (*logging.TestLogger)(t))
	sdt.Auto = false
	sdt.Manual = []Service{{ID: 1, Name: "A", Provider: "P", Type: 0x01}}
	sdt.Rebuild()
	v0 := sdt.version

	sdt.Manual = []Service{{ID: 1, Name: "A", Provider: "P", Type: 0x01}, {ID: 2, Name: "B", Provider: "P", Type: 0x01}}
	sdt.Rebuild()
	if sdt.version == v0 {
		t.Errorf("expected version to bump on service list change")
	}
}
