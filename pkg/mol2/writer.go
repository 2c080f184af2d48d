package mol2

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// statusPlaceholder is written in the molecule status-bits slot when a
// comment follows an absent status field; the legacy column contract
// requires a non-empty status line before a trailing comment.
const statusPlaceholder = "****"

// Render serializes records back to mol2 text. Records without a
// molecule render to nothing. Output is round-trip stable: parsing the
// rendered text yields equal records, provided no record has a hole in
// its positional-optional fields (a present field after an absent one
// cannot be represented and is a caller invariant, not repaired here).
func Render(records []*Record) string {
	var b strings.Builder
	for _, rec := range records {
		renderRecord(&b, rec)
	}
	return b.String()
}

// WriteFile renders records to the file at path, truncating by
// default or appending when appendMode is set.
func WriteFile(path string, records []*Record, appendMode bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendMode {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := f.WriteString(Render(records)); err != nil {
		f.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func renderRecord(b *strings.Builder, rec *Record) {
	m := rec.Molecule
	if m == nil {
		return
	}
	b.WriteString(SectionMarkerPrefix + sectionMolecule + "\n")
	b.WriteString(m.MolName + "\n")
	b.WriteString(m.countsLine() + "\n")
	b.WriteString(derefOr(m.MolType, "") + "\n")
	b.WriteString(derefOr(m.ChargeType, "") + "\n")
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(derefOr(m.MolComment, "") + "\n")
	b.WriteString("\n")

	if len(rec.Atoms) > 0 {
		b.WriteString(SectionMarkerPrefix + sectionAtom + "\n")
		for i := range rec.Atoms {
			b.WriteString(atomLine(&rec.Atoms[i]) + "\n")
		}
		b.WriteString("\n")
	}
	if len(rec.Bonds) > 0 {
		b.WriteString(SectionMarkerPrefix + sectionBond + "\n")
		for i := range rec.Bonds {
			b.WriteString(bondLine(&rec.Bonds[i]) + "\n")
		}
		b.WriteString("\n")
	}
	if len(rec.Substructures) > 0 {
		b.WriteString(SectionMarkerPrefix + sectionSubstructure + "\n")
		for i := range rec.Substructures {
			b.WriteString(substructureLine(&rec.Substructures[i]) + "\n")
		}
		b.WriteString("\n")
	}
}

// countsLine joins the present counts with single spaces, stopping at
// the first absent count to match the parser's prefix rule.
func (m *Molecule) countsLine() string {
	var l fieldLine
	for _, c := range []*uint32{m.NumAtoms, m.NumBonds, m.NumSubst, m.NumFeat, m.NumSets} {
		if c == nil {
			break
		}
		l.add(strconv.FormatUint(uint64(*c), 10))
	}
	return l.String()
}

func (m *Molecule) statusLine() string {
	if m.StatusBits != nil {
		return *m.StatusBits
	}
	if m.MolComment != nil {
		return statusPlaceholder
	}
	return ""
}

func atomLine(a *Atom) string {
	var l fieldLine
	l.add(formatID(a.AtomID))
	l.add(a.AtomName)
	l.add(formatCoord(a.X))
	l.add(formatCoord(a.Y))
	l.add(formatCoord(a.Z))
	l.add(a.AtomType)
	l.addOptID(a.SubstID)
	l.addOptString(a.SubstName)
	l.addOptFloat32(a.Charge)
	l.addOptString(a.StatusBit)
	return l.String()
}

func bondLine(b *Bond) string {
	var l fieldLine
	l.add(formatID(b.BondID))
	l.add(formatID(b.OriginAtomID))
	l.add(formatID(b.TargetAtomID))
	l.add(b.BondType)
	l.addOptString(b.StatusBit)
	return l.String()
}

func substructureLine(s *Substructure) string {
	var l fieldLine
	l.add(formatID(s.SubstID))
	l.add(s.SubstName)
	l.add(formatID(s.RootAtom))
	l.addOptString(s.SubstType)
	l.addOptInt64(s.DictType)
	l.addOptString(s.Chain)
	l.addOptString(s.SubType)
	l.addOptID(s.InterBonds)
	l.addOptString(s.Status)
	l.addOptString(s.Comment)
	return l.String()
}

// fieldLine builds one entry line: required fields unconditionally,
// then positional-optional fields in strict order, stopping emission
// at the first absent field. It is the serializer-side twin of tail.
type fieldLine struct {
	parts   []string
	stopped bool
}

func (l *fieldLine) add(s string) {
	l.parts = append(l.parts, s)
}

func (l *fieldLine) addOptString(v *string) {
	if l.stopped || v == nil {
		l.stopped = true
		return
	}
	l.add(*v)
}

func (l *fieldLine) addOptID(v *uint16) {
	if l.stopped || v == nil {
		l.stopped = true
		return
	}
	l.add(formatID(*v))
}

func (l *fieldLine) addOptFloat32(v *float32) {
	if l.stopped || v == nil {
		l.stopped = true
		return
	}
	l.add(strconv.FormatFloat(float64(*v), 'g', -1, 32))
}

func (l *fieldLine) addOptInt64(v *int64) {
	if l.stopped || v == nil {
		l.stopped = true
		return
	}
	l.add(strconv.FormatInt(*v, 10))
}

func (l *fieldLine) String() string {
	return strings.Join(l.parts, " ")
}

func formatID(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func derefOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
