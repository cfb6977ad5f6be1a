package eeprog

import (
	"bytes"
	"strings"
	"testing"
)

func TestRawImage(t *testing.T) {
	data := pattern(100, 4)
	img, err := ReadImage(bytes.NewReader(data), FormatRaw)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if img.HasAddr || !bytes.Equal(img.Data, data) {
		t.Errorf("Unexpected raw image %+v", img)
	}

	var buf bytes.Buffer
	if err := WriteImage(&buf, FormatRaw, 0x100, data); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("Raw output must be the data itself")
	}
}

func TestIHexRoundTrip(t *testing.T) {
	data := pattern(300, 8)
	var buf bytes.Buffer
	if err := WriteImage(&buf, FormatIHex, 0x380, data); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(buf.String()), ":00000001FF") {
		t.Errorf("Expected an end of file record, got %q", buf.String())
	}

	img, err := ReadImage(&buf, FormatIHex)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if !img.HasAddr || img.Addr != 0x380 {
		t.Errorf("Expected load address 0x380, got 0x%X (%v)", img.Addr, img.HasAddr)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("Intel HEX round trip changed the data")
	}
}

func TestIHexGapsAreErased(t *testing.T) {
	src := ":02001000AABB89\n:01001400CC1F\n:00000001FF\n"
	img, err := ReadImage(strings.NewReader(src), FormatIHex)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xFF, 0xFF, 0xCC}
	if img.Addr != 0x10 || !bytes.Equal(img.Data, want) {
		t.Errorf("Got 0x%X % X, want 0x10 % X", img.Addr, img.Data, want)
	}
}

func TestImageErrors(t *testing.T) {
	if _, err := ReadImage(strings.NewReader(":nonsense\n"), FormatIHex); err == nil {
		t.Error("Expected a parse error")
	}
	if _, err := ReadImage(strings.NewReader(":00000001FF\n"), FormatIHex); err == nil {
		t.Error("Expected an error for an empty image")
	}
	if _, err := ReadImage(strings.NewReader(""), "srec"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
	if err := WriteImage(&bytes.Buffer{}, "srec", 0, nil); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}
