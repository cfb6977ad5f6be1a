package eeprog

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// Image file formats.
const (
	FormatRaw  = "raw"
	FormatIHex = "ihex"
)

// Image is a memory image read from a file.
type Image struct {
	Data []byte
	// Addr is the load address stored in the file.
	// Raw images carry none and HasAddr is false.
	Addr    uint32
	HasAddr bool
}

// ReadImage reads an image in the given format.
func ReadImage(r io.Reader, format string) (Image, error) {
	switch format {
	case FormatRaw, "":
		data, err := io.ReadAll(r)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: data}, nil
	case FormatIHex:
		return readIHex(r)
	default:
		return Image{}, fmt.Errorf("unknown image format %q", format)
	}
}

// readIHex flattens all data records into one image; gaps are filled
// with 0xFF, the erased state of the chip.
func readIHex(r io.Reader) (Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return Image{}, fmt.Errorf("parse intel hex: %w", err)
	}
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return Image{}, fmt.Errorf("intel hex file has no data")
	}
	lo, hi := segs[0].Address, segs[0].Address
	for _, s := range segs {
		lo = min(lo, s.Address)
		hi = max(hi, s.Address+uint32(len(s.Data)))
	}
	return Image{
		Data:    mem.ToBinary(lo, hi-lo, 0xFF),
		Addr:    lo,
		HasAddr: true,
	}, nil
}

// WriteImage writes data in the given format; addr is recorded in
// formats that carry addresses.
func WriteImage(w io.Writer, format string, addr uint32, data []byte) error {
	switch format {
	case FormatRaw, "":
		_, err := w.Write(data)
		return err
	case FormatIHex:
		mem := gohex.NewMemory()
		if err := mem.AddBinary(addr, data); err != nil {
			return fmt.Errorf("intel hex: %w", err)
		}
		return mem.DumpIntelHex(w, 16)
	default:
		return fmt.Errorf("unknown image format %q", format)
	}
}
