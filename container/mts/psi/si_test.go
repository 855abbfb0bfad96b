package psi

import (
	"bytes"
	"testing"

	"github.com/brinemux/tsmux/container/mts/charset"
)

func TestLanguageDescriptor(t *testing.T) {
	d, err := LanguageDescriptor("eng", AudioTypeUndefined)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{'e', 'n', 'g', 0x00}
	if !bytes.Equal(d.Data, want) {
		t.Errorf("got %v, want %v", d.Data, want)
	}
	if d.Tag != LanguageTag {
		t.Errorf("got tag %#x, want %#x", d.Tag, LanguageTag)
	}
}

func TestLanguageDescriptorInvalid(t *testing.T) {
	_, err := LanguageDescriptor("english", AudioTypeUndefined)
	if err != ErrInvalidLanguageCode {
		t.Errorf("got error %v, want %v", err, ErrInvalidLanguageCode)
	}
}

func TestServiceDescriptor(t *testing.T) {
	d, err := ServiceDescriptor(ServiceTypeDigitalTV, "AusOcean", "Cam1", charset.Default)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{ServiceTypeDigitalTV, 8}
	want = append(want, "AusOcean"...)
	want = append(want, 4)
	want = append(want, "Cam1"...)
	if !bytes.Equal(d.Data, want) {
		t.Errorf("got %v, want %v", d.Data, want)
	}
}

func TestSplitSDT(t *testing.T) {
	var services []SDTService
	for i := 0; i < 3; i++ {
		services = append(services, SDTService{ServiceID: uint16(i)})
	}
	sections := SplitSDT(1, 1, services)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].SyntaxSection.LastSection != 0 {
		t.Errorf("got last section %d, want 0", sections[0].SyntaxSection.LastSection)
	}
}
