// Package mol2 implements the record model for the TRIPOS mol2 text
// format together with a parser and serializer pair. Section bodies
// use positional-optional trailing fields: parsing stops populating a
// line's optional tail at the first missing token, and the serializer
// stops emitting at the first absent field, so records without holes
// in their optional tail round-trip losslessly.
package mol2

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Section names the parser dispatches on. Markers with any other name
// are tolerated and their body lines ignored.
const (
	sectionMolecule     = "MOLECULE"
	sectionAtom         = "ATOM"
	sectionBond         = "BOND"
	sectionSubstructure = "SUBSTRUCTURE"
)

// SectionMarkerPrefix introduces a named section block.
const SectionMarkerPrefix = "@<TRIPOS>"

// Parser turns mol2 text into records. The section-marker pattern is
// compiled once per Parser; construct with NewParser and reuse.
type Parser struct {
	marker *regexp.Regexp
}

// NewParser creates a parser with its marker pattern compiled.
func NewParser() *Parser {
	return &Parser{
		marker: regexp.MustCompile(`^@<TRIPOS>(\w+)`),
	}
}

// Parse reads a sequence of text lines into an ordered list of
// records. A new MOLECULE marker closes the record in progress; the
// final record is flushed at end of input even without a trailing
// marker. Malformed required fields abort the whole parse.
func (p *Parser) Parse(lines []string) ([]*Record, error) {
	var (
		records      []*Record
		entry        = &Record{}
		section      string
		sectionStart int
	)
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if m := p.marker.FindStringSubmatch(line); m != nil {
			section = m[1]
			sectionStart = i
			if section == sectionMolecule && entry.Molecule != nil {
				records = append(records, entry)
				entry = &Record{Desc: entry.Desc}
			}
			continue
		}
		if section == "" {
			continue
		}
		var err error
		switch section {
		case sectionMolecule:
			readMoleculeLine(i-sectionStart-1, line, entry)
		case sectionAtom:
			err = readAtomLine(line, entry)
		case sectionBond:
			err = readBondLine(line, entry)
		case sectionSubstructure:
			err = readSubstructureLine(line, entry)
		default:
			// Unknown section, body ignored.
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	if entry.Molecule != nil {
		records = append(records, entry)
	}
	return records, nil
}

// ParseReader parses mol2 text from r.
func (p *Parser) ParseReader(r io.Reader) ([]*Record, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return p.Parse(lines)
}

// ParseFile parses the mol2 file at path.
func (p *Parser) ParseFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	records, err := p.ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// readMoleculeLine dispatches a MOLECULE body line by its offset from
// the section marker. Blank lines keep their slot but set nothing, so
// the header stays strictly positional. Offsets past the comment line
// are ignored.
func readMoleculeLine(offset int, line string, rec *Record) {
	if line == "" {
		return
	}
	switch offset {
	case 0:
		rec.ensureMolecule().MolName = line
	case 1:
		rec.ensureMolecule().readCounts(line)
	case 2:
		rec.ensureMolecule().MolType = firstToken(line)
	case 3:
		rec.ensureMolecule().ChargeType = firstToken(line)
	case 4:
		rec.ensureMolecule().StatusBits = firstToken(line)
	case 5:
		c := line
		rec.ensureMolecule().MolComment = &c
	}
}

// readCounts scans the leading run of numeric whitespace-delimited
// tokens into the five count fields. The first missing or non-numeric
// token leaves that count and every later one absent.
func (m *Molecule) readCounts(line string) {
	fields := strings.Fields(line)
	targets := []**uint32{&m.NumAtoms, &m.NumBonds, &m.NumSubst, &m.NumFeat, &m.NumSets}
	for i, dst := range targets {
		if i >= len(fields) {
			return
		}
		n, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return
		}
		v := uint32(n)
		*dst = &v
	}
}

func firstToken(line string) *string {
	tok := ""
	if fields := strings.Fields(line); len(fields) > 0 {
		tok = fields[0]
	}
	return &tok
}

func readAtomLine(line string, rec *Record) error {
	if line == "" {
		return nil
	}
	f := strings.Fields(line)
	if len(f) < 6 {
		return fmt.Errorf("atom line has %d fields, need at least 6", len(f))
	}
	var (
		atom Atom
		err  error
	)
	if atom.AtomID, err = parseID(f[0]); err != nil {
		return fmt.Errorf("atom id: %w", err)
	}
	atom.AtomName = f[1]
	if atom.X, err = strconv.ParseFloat(f[2], 64); err != nil {
		return fmt.Errorf("atom x: %w", err)
	}
	if atom.Y, err = strconv.ParseFloat(f[3], 64); err != nil {
		return fmt.Errorf("atom y: %w", err)
	}
	if atom.Z, err = strconv.ParseFloat(f[4], 64); err != nil {
		return fmt.Errorf("atom z: %w", err)
	}
	atom.AtomType = f[5]
	tl := tail{toks: f[6:]}
	atom.SubstID = tl.nextID()
	atom.SubstName = tl.nextString()
	atom.Charge = tl.nextFloat32()
	atom.StatusBit = tl.nextString()
	rec.Atoms = append(rec.Atoms, atom)
	return nil
}

func readBondLine(line string, rec *Record) error {
	if line == "" {
		return nil
	}
	f := strings.Fields(line)
	if len(f) < 4 {
		return fmt.Errorf("bond line has %d fields, need at least 4", len(f))
	}
	var (
		bond Bond
		err  error
	)
	if bond.BondID, err = parseID(f[0]); err != nil {
		return fmt.Errorf("bond id: %w", err)
	}
	if bond.OriginAtomID, err = parseID(f[1]); err != nil {
		return fmt.Errorf("bond origin atom id: %w", err)
	}
	if bond.TargetAtomID, err = parseID(f[2]); err != nil {
		return fmt.Errorf("bond target atom id: %w", err)
	}
	bond.BondType = f[3]
	tl := tail{toks: f[4:]}
	bond.StatusBit = tl.nextString()
	rec.Bonds = append(rec.Bonds, bond)
	return nil
}

func readSubstructureLine(line string, rec *Record) error {
	if line == "" {
		return nil
	}
	f := strings.Fields(line)
	if len(f) < 3 {
		return fmt.Errorf("substructure line has %d fields, need at least 3", len(f))
	}
	var (
		sub Substructure
		err error
	)
	if sub.SubstID, err = parseID(f[0]); err != nil {
		return fmt.Errorf("substructure id: %w", err)
	}
	sub.SubstName = f[1]
	if sub.RootAtom, err = parseID(f[2]); err != nil {
		return fmt.Errorf("substructure root atom: %w", err)
	}
	tl := tail{toks: f[3:]}
	sub.SubstType = tl.nextString()
	sub.DictType = tl.nextInt64()
	sub.Chain = tl.nextString()
	sub.SubType = tl.nextString()
	sub.InterBonds = tl.nextID()
	sub.Status = tl.nextString()
	// Legacy quirk: the trailing comment is reconstructed by joining
	// the remaining tokens with no separator, losing original spacing.
	if rest := tl.rest(); len(rest) > 0 {
		c := strings.Join(rest, "")
		sub.Comment = &c
	}
	rec.Substructures = append(rec.Substructures, sub)
	return nil
}

func parseID(tok string) (uint16, error) {
	n, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %q as id: %w", tok, err)
	}
	return uint16(n), nil
}

// tail reads a line's positional-optional trailing tokens. A missing
// token, or a token a typed reader cannot parse, marks the tail done:
// every later field stays absent.
type tail struct {
	toks []string
	done bool
}

func (t *tail) next() (string, bool) {
	if t.done || len(t.toks) == 0 {
		t.done = true
		return "", false
	}
	tok := t.toks[0]
	t.toks = t.toks[1:]
	return tok, true
}

func (t *tail) nextString() *string {
	tok, ok := t.next()
	if !ok {
		return nil
	}
	return &tok
}

func (t *tail) nextID() *uint16 {
	tok, ok := t.next()
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		t.done = true
		return nil
	}
	v := uint16(n)
	return &v
}

func (t *tail) nextFloat32() *float32 {
	tok, ok := t.next()
	if !ok {
		return nil
	}
	n, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		t.done = true
		return nil
	}
	v := float32(n)
	return &v
}

func (t *tail) nextInt64() *int64 {
	tok, ok := t.next()
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		t.done = true
		return nil
	}
	return &n
}

// rest returns the unread tokens, or nil once the tail is done.
func (t *tail) rest() []string {
	if t.done {
		return nil
	}
	return t.toks
}
