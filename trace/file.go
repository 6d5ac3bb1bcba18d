package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/signalsfoundry/mobility-simulator/model"
)

// HeaderSize is the encoded size of Header: two int32 and four float64.
const HeaderSize = 2*4 + 4*8

// cellSize is the encoded size of one (x, y) pair.
const cellSize = 2 * 8

// ErrIO indicates a trace file could not be opened, written, read or closed.
var ErrIO = errors.New("trace I/O failed")

// IOError wraps a filesystem failure with the operation and path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// Header is the fixed prefix of a trace file. The MBR is the minimum
// bounding rectangle of the simulation area.
type Header struct {
	NodeCount     int32
	DurationSteps int32
	MinX, MinY    float64
	MaxX, MaxY    float64
}

// FileSize returns the exact encoded size of a file with this header.
func (h Header) FileSize() int64 {
	return HeaderSize + cellSize*int64(h.DurationSteps)*int64(h.NodeCount)
}

// Write creates path exclusively and stores h followed by m, row by row,
// little-endian. The file is always closed; a close failure after a write
// failure is reported alongside it. Write never retries and never removes
// a partial file. It returns the number of bytes written.
func Write(path string, h Header, m *Matrix) (n int64, err error) {
	if m == nil {
		m = NewMatrix(0, 0)
	}
	if int(h.DurationSteps) != m.Steps || int(h.NodeCount) != m.Nodes {
		return 0, fmt.Errorf("trace header %dx%d does not match matrix %dx%d",
			h.DurationSteps, h.NodeCount, m.Steps, m.Nodes)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &IOError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, &IOError{Op: "close", Path: path, Err: cerr})
		}
	}()

	cw := &countingWriter{w: f}
	if err := writeBuffered(cw, h, m); err != nil {
		return cw.n, &IOError{Op: "write", Path: path, Err: err}
	}
	return cw.n, nil
}

// writeBuffered encodes the trace through a buffer onto dst. When
// encoding stops early the buffered prefix is still flushed, and a flush
// failure that is not the encoding error itself is joined to it.
func writeBuffered(dst io.Writer, h Header, m *Matrix) error {
	w := bufio.NewWriter(dst)
	if err := encode(w, h, m); err != nil {
		if ferr := w.Flush(); ferr != nil && !errors.Is(err, ferr) {
			err = errors.Join(err, ferr)
		}
		return err
	}
	return w.Flush()
}

func encode(w io.Writer, h Header, m *Matrix) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(h.NodeCount))
	binary.LittleEndian.PutUint32(buf[4:], uint32(h.DurationSteps))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(h.MinX))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(h.MinY))
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(h.MaxX))
	binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(h.MaxY))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}

	var cell [cellSize]byte
	for k, p := range m.cells {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: step %d node %d at (%v, %v)", errNonFinite, k/m.Nodes, k%m.Nodes, p.X, p.Y)
		}
		binary.LittleEndian.PutUint64(cell[0:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(cell[8:], math.Float64bits(p.Y))
		if _, err := w.Write(cell[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader reads the header of the trace file at path. It is meant for
// validating a file after it was written.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	h, err := decodeHeader(f)
	if err != nil {
		return Header{}, &IOError{Op: "read", Path: path, Err: err}
	}
	return h, nil
}

// ReadFile reads a whole trace file and checks that its length matches
// the header.
func ReadFile(path string) (Header, *Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Header{}, nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	r := bufio.NewReader(f)
	h, err := decodeHeader(r)
	if err != nil {
		return Header{}, nil, &IOError{Op: "read", Path: path, Err: err}
	}
	if h.NodeCount < 0 || h.DurationSteps < 0 {
		return h, nil, fmt.Errorf("trace %s: negative shape %dx%d", path, h.DurationSteps, h.NodeCount)
	}
	if size := info.Size(); size != h.FileSize() {
		return h, nil, fmt.Errorf("trace %s: size %d bytes, header implies %d", path, size, h.FileSize())
	}

	m := NewMatrix(int(h.DurationSteps), int(h.NodeCount))
	var cell [cellSize]byte
	for k := range m.cells {
		if _, err := io.ReadFull(r, cell[:]); err != nil {
			return h, nil, &IOError{Op: "read", Path: path, Err: err}
		}
		m.cells[k] = model.Position{
			X: math.Float64frombits(binary.LittleEndian.Uint64(cell[0:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(cell[8:])),
		}
	}
	return h, m, nil
}

func decodeHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		NodeCount:     int32(binary.LittleEndian.Uint32(buf[0:])),
		DurationSteps: int32(binary.LittleEndian.Uint32(buf[4:])),
		MinX:          math.Float64frombits(binary.LittleEndian.Uint64(buf[8:])),
		MinY:          math.Float64frombits(binary.LittleEndian.Uint64(buf[16:])),
		MaxX:          math.Float64frombits(binary.LittleEndian.Uint64(buf[24:])),
		MaxY:          math.Float64frombits(binary.LittleEndian.Uint64(buf[32:])),
	}, nil
}

var errNonFinite = errors.New("trace position is not finite")

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
