package eeprog

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/michcald/eeprog/hexdump"
)

// Progress describes a finished Programmer operation.
type Progress struct {
	// Op is "upload", "download", "verify" or "erase".
	Op      string
	Addr    uint32
	Bytes   int
	Elapsed time.Duration
}

// ProgressCallback is called after every completed operation.
type ProgressCallback func(Progress)

// ProgrammerConfig holds the Programmer configuration.
type ProgrammerConfig struct {
	// Dump receives a hex dump of uploaded and downloaded data (optional).
	Dump io.Writer
	// ProgressCallback is called when an operation completes (optional).
	ProgressCallback ProgressCallback
	// Logger overrides the global logger.
	Logger Logger
}

// Option is a functional option for configuring the Programmer.
type Option func(*ProgrammerConfig)

// WithDump writes a deduplicated hex dump of transferred data to w.
func WithDump(w io.Writer) Option {
	return func(c *ProgrammerConfig) { c.Dump = w }
}

// WithProgressCallback sets a callback reporting completed operations.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *ProgrammerConfig) { c.ProgressCallback = cb }
}

// WithLogger sets the logger of the programmer.
func WithLogger(l Logger) Option {
	return func(c *ProgrammerConfig) { c.Logger = l }
}

// VerifyResult is the outcome of a verify pass that completed.
type VerifyResult struct {
	Bytes      int
	Mismatches int
}

// OK reports whether the memory matched.
func (r VerifyResult) OK() bool { return r.Mismatches == 0 }

// Err returns a *MismatchError when the memory did not match.
func (r VerifyResult) Err() error {
	if r.OK() {
		return nil
	}
	return &MismatchError{Mismatches: r.Mismatches, Bytes: r.Bytes}
}

// Programmer runs the high level status/upload/download/verify operations
// against one Target.
type Programmer struct {
	target Target
	config ProgrammerConfig
	log    Logger
}

// NewProgrammer returns a Programmer for t.
func NewProgrammer(t Target, opts ...Option) *Programmer {
	if t == nil {
		panic("target cannot be nil")
	}
	var c ProgrammerConfig
	for _, opt := range opts {
		opt(&c)
	}
	return &Programmer{target: t, config: c, log: loggerOr(c.Logger)}
}

// Status reads the status register.
func (p *Programmer) Status() (Status, error) {
	return p.target.Status()
}

// Upload writes data to the memory at addr.
func (p *Programmer) Upload(addr uint32, data []byte) error {
	start := time.Now()
	p.log.Info(fmt.Sprintf("uploading %d bytes to 0x%06X", len(data), addr))
	if err := p.target.Write(addr, data); err != nil {
		return err
	}
	if err := p.dump(addr, data); err != nil {
		return err
	}
	p.report(Progress{Op: "upload", Addr: addr, Bytes: len(data), Elapsed: time.Since(start)})
	return nil
}

// Download copies n bytes of memory starting at addr to w.
func (p *Programmer) Download(w io.Writer, addr uint32, n int) error {
	start := time.Now()
	p.log.Info(fmt.Sprintf("downloading %d bytes from 0x%06X", n, addr))

	bw := bufio.NewWriter(w)
	tee := byteTee{bw}
	var enc *hexdump.Encoder
	if p.config.Dump != nil {
		enc = hexdump.NewEncoder(p.config.Dump, addr)
		tee = append(tee, enc)
	}
	if err := p.target.ReadStream(addr, n, tee); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return &InputError{Arg: "output", Err: err}
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	p.report(Progress{Op: "download", Addr: addr, Bytes: n, Elapsed: time.Since(start)})
	return nil
}

// Verify compares the memory at addr with want. Differing bytes are
// counted in the result; the error reports failed transfers only.
func (p *Programmer) Verify(addr uint32, want []byte) (VerifyResult, error) {
	start := time.Now()
	p.log.Info(fmt.Sprintf("verifying %d bytes at 0x%06X", len(want), addr))
	n, err := p.target.Verify(addr, want)
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyResult{Bytes: len(want), Mismatches: n}
	if !res.OK() {
		p.log.Warn(fmt.Sprintf("%d of %d bytes differ", n, len(want)))
	}
	p.report(Progress{Op: "verify", Addr: addr, Bytes: len(want), Elapsed: time.Since(start)})
	return res, nil
}

// Erase erases the whole chip, if the target supports it.
func (p *Programmer) Erase() error {
	e, ok := p.target.(Eraser)
	if !ok {
		return fmt.Errorf("erase: %w", ErrUnsupported)
	}
	start := time.Now()
	if err := e.ChipErase(); err != nil {
		return err
	}
	p.report(Progress{Op: "erase", Elapsed: time.Since(start)})
	return nil
}

func (p *Programmer) dump(addr uint32, data []byte) error {
	if p.config.Dump == nil {
		return nil
	}
	enc := hexdump.NewEncoder(p.config.Dump, addr)
	enc.Write(data)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	return nil
}

func (p *Programmer) report(pr Progress) {
	p.log.Debug(fmt.Sprintf("%s of %d bytes took %s", pr.Op, pr.Bytes, pr.Elapsed))
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(pr)
	}
}

// byteTee hands every byte to all of its writers.
type byteTee []io.ByteWriter

func (t byteTee) WriteByte(b byte) error {
	for _, w := range t {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}
