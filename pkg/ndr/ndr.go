// Package ndr provides Network Data Representation encoding/decoding for
// DCE/RPC stubs: alignment, unique-pointer referents and the deferred region
// that carries pointed-to data after the fixed part of a structure.
package ndr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ineffectivecoder/NLGooser/internal/encoding"
)

// MaxCount bounds every declared element count read from the wire
const MaxCount = 65535

// firstReferent is the first non-null referent ID handed out by a Writer
const firstReferent = 0x00020000

// ErrMalformed is returned when a buffer violates NDR bounds or layout
var ErrMalformed = errors.New("malformed NDR data")

// Marshaler is implemented by request records
type Marshaler interface {
	MarshalNDR(w *Writer)
}

// Unmarshaler is implemented by response records
type Unmarshaler interface {
	UnmarshalNDR(r *Reader) error
}

// Reader provides sequential reading of NDR-encoded data
type Reader struct {
	data     []byte
	offset   int
	deferred []func(*Reader) error
}

// NewReader creates an NDR reader
func NewReader(data []byte) *Reader {
	return &Reader{data: data, offset: 0}
}

// Remaining returns bytes left to read
func (r *Reader) Remaining() int {
	return len(r.data) - r.offset
}

// Offset returns the current read position
func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) need(n int) error {
	if n < 0 || r.offset+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformed, n, r.offset, r.Remaining())
	}
	return nil
}

// Skip advances the offset
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.offset += n
	return nil
}

// Align aligns to n-byte boundary
func (r *Reader) Align(n int) error {
	if n > 0 && r.offset%n != 0 {
		return r.Skip(n - (r.offset % n))
	}
	return nil
}

// ReadUint8 reads a uint8
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

// ReadUint16 reads a little-endian uint16
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.Align(2); err != nil {
		return 0, err
	}
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

// ReadUint32 reads a little-endian uint32
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.Align(4); err != nil {
		return 0, err
	}
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

// ReadFixed reads a fixed-size byte block with no length prefix
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	data := make([]byte, n)
	copy(data, r.data[r.offset:r.offset+n])
	r.offset += n
	return data, nil
}

// ReadFixedInto fills dst from the buffer
func (r *Reader) ReadFixedInto(dst []byte) error {
	if err := r.need(len(dst)); err != nil {
		return err
	}
	copy(dst, r.data[r.offset:])
	r.offset += len(dst)
	return nil
}

// ReadReferent reads a pointer (4 bytes) and returns true if non-null
func (r *Reader) ReadReferent() (bool, error) {
	ptr, err := r.ReadUint32()
	if err != nil {
		return false, err
	}
	return ptr != 0, nil
}

// Defer queues fn to run when the enclosing structure's deferred region is
// resolved.
func (r *Reader) Defer(fn func(*Reader) error) {
	r.deferred = append(r.deferred, fn)
}

// Resolve reads the deferred region. Pointees are consumed depth-first in
// the order their referents were read.
func (r *Reader) Resolve() error {
	queue := r.deferred
	r.deferred = nil
	for _, fn := range queue {
		if err := fn(r); err != nil {
			return err
		}
		if err := r.Resolve(); err != nil {
			return err
		}
	}
	return nil
}

// ReadCount reads a conformance count (the max count of a conformant array)
func (r *Reader) ReadCount() (uint32, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if n > MaxCount {
		return 0, fmt.Errorf("%w: declared count %d exceeds %d", ErrMalformed, n, MaxCount)
	}
	return n, nil
}

// ReadVaryingHeader reads the maxCount, offset, actualCount triple that
// precedes a conformant varying array and returns actualCount.
func (r *Reader) ReadVaryingHeader() (uint32, error) {
	maxCount, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	offset, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	actualCount, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}

	if maxCount > MaxCount || actualCount > MaxCount {
		return 0, fmt.Errorf("%w: declared count %d/%d exceeds %d", ErrMalformed, actualCount, maxCount, MaxCount)
	}
	if uint64(offset)+uint64(actualCount) > uint64(maxCount) {
		return 0, fmt.Errorf("%w: varying range %d+%d exceeds max count %d", ErrMalformed, offset, actualCount, maxCount)
	}
	return actualCount, nil
}

// ReadVaryingBytes reads a conformant varying byte array
func (r *Reader) ReadVaryingBytes() ([]byte, error) {
	n, err := r.ReadVaryingHeader()
	if err != nil {
		return nil, err
	}
	return r.ReadFixed(int(n))
}

// ReadVaryingUnits reads a conformant varying array of UTF-16 code units
func (r *Reader) ReadVaryingUnits() ([]uint16, error) {
	n, err := r.ReadVaryingHeader()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n) * 2); err != nil {
		return nil, err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(r.data[r.offset:])
		r.offset += 2
	}
	return units, nil
}

// ReadVaryingString reads a conformant varying UTF-16 string
func (r *Reader) ReadVaryingString() (string, error) {
	units, err := r.ReadVaryingUnits()
	if err != nil {
		return "", err
	}
	return encoding.FromUTF16(units), nil
}

// Writer provides NDR encoding
type Writer struct {
	data     []byte
	nextRef  uint32
	deferred []func(*Writer)
	err      error
}

// NewWriter creates an NDR writer
func NewWriter() *Writer {
	return &Writer{data: make([]byte, 0, 256), nextRef: firstReferent}
}

// Bytes returns the written data
func (w *Writer) Bytes() []byte {
	return w.data
}

// Fail records a value that could not be encoded. Only the first error is
// kept; encoding continues so the caller checks Err once at the end.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Err returns the first error recorded by Fail
func (w *Writer) Err() error {
	return w.err
}

// Len returns the number of bytes written so far
func (w *Writer) Len() int {
	return len(w.data)
}

// Align pads to n-byte boundary
func (w *Writer) Align(n int) {
	for len(w.data)%n != 0 {
		w.data = append(w.data, 0)
	}
}

// WriteFixed writes raw bytes with no alignment or length prefix
func (w *Writer) WriteFixed(b []byte) {
	w.data = append(w.data, b...)
}

// WriteUint8 writes a uint8
func (w *Writer) WriteUint8(v uint8) {
	w.data = append(w.data, v)
}

// WriteUint16 writes a little-endian uint16
func (w *Writer) WriteUint16(v uint16) {
	w.Align(2)
	w.data = binary.LittleEndian.AppendUint16(w.data, v)
}

// WriteUint32 writes a little-endian uint32
func (w *Writer) WriteUint32(v uint32) {
	w.Align(4)
	w.data = binary.LittleEndian.AppendUint32(w.data, v)
}

// WriteUint64 writes a little-endian uint64
func (w *Writer) WriteUint64(v uint64) {
	w.Align(8)
	w.data = binary.LittleEndian.AppendUint64(w.data, v)
}

// WriteReferent writes a unique-pointer referent: a fresh non-zero ID when
// present, zero otherwise. It reports present for chaining into Defer.
func (w *Writer) WriteReferent(present bool) bool {
	if !present {
		w.WriteUint32(0)
		return false
	}
	w.WriteUint32(w.nextRef)
	w.nextRef += 4
	return true
}

// Defer queues fn to write out-of-line data once the fixed part of the
// enclosing structure is complete.
func (w *Writer) Defer(fn func(*Writer)) {
	w.deferred = append(w.deferred, fn)
}

// Flush writes the deferred region. Each pointee is followed immediately
// by its own pointees before the next sibling is written.
func (w *Writer) Flush() {
	queue := w.deferred
	w.deferred = nil
	for _, fn := range queue {
		fn(w)
		w.Flush()
	}
}

// WriteVaryingHeader writes the maxCount, offset, actualCount triple
func (w *Writer) WriteVaryingHeader(maxCount, actualCount uint32) {
	w.WriteUint32(maxCount)
	w.WriteUint32(0)
	w.WriteUint32(actualCount)
}

// WriteVaryingBytes writes a conformant varying byte array
func (w *Writer) WriteVaryingBytes(b []byte, maxCount uint32) {
	w.WriteVaryingHeader(maxCount, uint32(len(b)))
	w.WriteFixed(b)
}

// WriteVaryingString writes a conformant varying UTF-16 string. A
// terminated string carries a trailing NUL counted in both counts.
func (w *Writer) WriteVaryingString(s string, terminated bool) {
	units := encoding.ToUTF16(s)
	if terminated {
		units = append(units, 0)
	}
	w.WriteVaryingUnits(units, uint32(len(units)))
}

// WriteVaryingUnits writes UTF-16 code units as a conformant varying array
func (w *Writer) WriteVaryingUnits(units []uint16, maxCount uint32) {
	w.WriteVaryingHeader(maxCount, uint32(len(units)))
	for _, u := range units {
		w.data = binary.LittleEndian.AppendUint16(w.data, u)
	}
}
