package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/moltools/mol2db/pkg/mol2"
)

// ErrShortData reports a blob that ends before its declared content.
var ErrShortData = errors.New("encoded data too short")

// EncodeAtoms serializes an atom list into the binary blob format.
func EncodeAtoms(atoms []mol2.Atom) []byte {
	w := newWriter()
	w.u32(uint32(len(atoms)))
	for i := range atoms {
		encodeAtom(w, &atoms[i])
	}
	return w.buf
}

// DecodeAtoms deserializes an atom blob produced by EncodeAtoms.
func DecodeAtoms(data []byte) ([]mol2.Atom, error) {
	r := &reader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("atom blob: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	atoms := make([]mol2.Atom, 0, n)
	for i := 0; i < n; i++ {
		a, err := decodeAtom(r)
		if err != nil {
			return nil, fmt.Errorf("atom blob entry %d: %w", i, err)
		}
		atoms = append(atoms, a)
	}
	return atoms, nil
}

// EncodeBonds serializes a bond list into the binary blob format.
func EncodeBonds(bonds []mol2.Bond) []byte {
	w := newWriter()
	w.u32(uint32(len(bonds)))
	for i := range bonds {
		encodeBond(w, &bonds[i])
	}
	return w.buf
}

// DecodeBonds deserializes a bond blob produced by EncodeBonds.
func DecodeBonds(data []byte) ([]mol2.Bond, error) {
	r := &reader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("bond blob: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	bonds := make([]mol2.Bond, 0, n)
	for i := 0; i < n; i++ {
		b, err := decodeBond(r)
		if err != nil {
			return nil, fmt.Errorf("bond blob entry %d: %w", i, err)
		}
		bonds = append(bonds, b)
	}
	return bonds, nil
}

// EncodeSubstructures serializes a substructure list into the binary
// blob format.
func EncodeSubstructures(subs []mol2.Substructure) []byte {
	w := newWriter()
	w.u32(uint32(len(subs)))
	for i := range subs {
		encodeSubstructure(w, &subs[i])
	}
	return w.buf
}

// DecodeSubstructures deserializes a substructure blob produced by
// EncodeSubstructures.
func DecodeSubstructures(data []byte) ([]mol2.Substructure, error) {
	r := &reader{data: data}
	n, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("substructure blob: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	subs := make([]mol2.Substructure, 0, n)
	for i := 0; i < n; i++ {
		s, err := decodeSubstructure(r)
		if err != nil {
			return nil, fmt.Errorf("substructure blob entry %d: %w", i, err)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func encodeAtom(w *writer, a *mol2.Atom) {
	w.u16(a.AtomID)
	w.str(a.AtomName)
	w.f64(a.X)
	w.f64(a.Y)
	w.f64(a.Z)
	w.str(a.AtomType)
	nt := trailCount(a.SubstID != nil, a.SubstName != nil, a.Charge != nil, a.StatusBit != nil)
	w.u8(nt)
	if nt > 0 {
		w.u16(*a.SubstID)
	}
	if nt > 1 {
		w.str(*a.SubstName)
	}
	if nt > 2 {
		w.f32(*a.Charge)
	}
	if nt > 3 {
		w.str(*a.StatusBit)
	}
}

func decodeAtom(r *reader) (mol2.Atom, error) {
	var a mol2.Atom
	a.AtomID = r.u16()
	a.AtomName = r.str()
	a.X = r.f64()
	a.Y = r.f64()
	a.Z = r.f64()
	a.AtomType = r.str()
	nt := r.u8()
	if r.err == nil && nt > 4 {
		return a, fmt.Errorf("invalid trailing field count %d", nt)
	}
	if nt > 0 {
		v := r.u16()
		a.SubstID = &v
	}
	if nt > 1 {
		s := r.str()
		a.SubstName = &s
	}
	if nt > 2 {
		c := r.f32()
		a.Charge = &c
	}
	if nt > 3 {
		s := r.str()
		a.StatusBit = &s
	}
	return a, r.err
}

func encodeBond(w *writer, b *mol2.Bond) {
	w.u16(b.BondID)
	w.u16(b.OriginAtomID)
	w.u16(b.TargetAtomID)
	w.str(b.BondType)
	nt := trailCount(b.StatusBit != nil)
	w.u8(nt)
	if nt > 0 {
		w.str(*b.StatusBit)
	}
}

func decodeBond(r *reader) (mol2.Bond, error) {
	var b mol2.Bond
	b.BondID = r.u16()
	b.OriginAtomID = r.u16()
	b.TargetAtomID = r.u16()
	b.BondType = r.str()
	nt := r.u8()
	if r.err == nil && nt > 1 {
		return b, fmt.Errorf("invalid trailing field count %d", nt)
	}
	if nt > 0 {
		s := r.str()
		b.StatusBit = &s
	}
	return b, r.err
}

func encodeSubstructure(w *writer, s *mol2.Substructure) {
	w.u16(s.SubstID)
	w.str(s.SubstName)
	w.u16(s.RootAtom)
	nt := trailCount(
		s.SubstType != nil,
		s.DictType != nil,
		s.Chain != nil,
		s.SubType != nil,
		s.InterBonds != nil,
		s.Status != nil,
		s.Comment != nil,
	)
	w.u8(nt)
	if nt > 0 {
		w.str(*s.SubstType)
	}
	if nt > 1 {
		w.i64(*s.DictType)
	}
	if nt > 2 {
		w.str(*s.Chain)
	}
	if nt > 3 {
		w.str(*s.SubType)
	}
	if nt > 4 {
		w.u16(*s.InterBonds)
	}
	if nt > 5 {
		w.str(*s.Status)
	}
	if nt > 6 {
		w.str(*s.Comment)
	}
}

func decodeSubstructure(r *reader) (mol2.Substructure, error) {
	var s mol2.Substructure
	s.SubstID = r.u16()
	s.SubstName = r.str()
	s.RootAtom = r.u16()
	nt := r.u8()
	if r.err == nil && nt > 7 {
		return s, fmt.Errorf("invalid trailing field count %d", nt)
	}
	if nt > 0 {
		v := r.str()
		s.SubstType = &v
	}
	if nt > 1 {
		v := r.i64()
		s.DictType = &v
	}
	if nt > 2 {
		v := r.str()
		s.Chain = &v
	}
	if nt > 3 {
		v := r.str()
		s.SubType = &v
	}
	if nt > 4 {
		v := r.u16()
		s.InterBonds = &v
	}
	if nt > 5 {
		v := r.str()
		s.Status = &v
	}
	if nt > 6 {
		v := r.str()
		s.Comment = &v
	}
	return s, r.err
}

// trailCount counts the present trailing optional fields up to the
// first absent one, implementing prefix truncation for the encoder. A
// present field after an absent one is a caller invariant violation
// and is silently truncated, matching the text serializer.
func trailCount(present ...bool) uint8 {
	var n uint8
	for _, p := range present {
		if !p {
			break
		}
		n++
	}
	return n
}

type writer struct {
	buf []byte
}

func newWriter() *writer {
	return &writer{buf: make([]byte, 0, 256)}
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) i64(v int64) {
	w.u64(uint64(v))
}

func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) f64(v float64) {
	w.u64(math.Float64bits(v))
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// reader decodes with a sticky error: after the first short read every
// later read returns the zero value, and the error surfaces once at
// the end of the entry.
type reader struct {
	data []byte
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data) < n {
		r.err = ErrShortData
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) f64() float64 {
	return math.Float64frombits(r.u64())
}

func (r *reader) str() string {
	n := r.u32()
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// count reads the entry count header and validates it against the
// bytes that remain, so a corrupt header cannot drive a huge
// allocation.
func (r *reader) count() (int, error) {
	n := r.u32()
	if r.err != nil {
		return 0, r.err
	}
	if int(n) > len(r.data) {
		return 0, fmt.Errorf("entry count %d exceeds remaining %d bytes: %w", n, len(r.data), ErrShortData)
	}
	return int(n), nil
}
