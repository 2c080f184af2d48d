package mol2

// Molecule holds the header metadata of a single structural record,
// matching the six-line MOLECULE section of the mol2 format. Every
// field past the name is optional; absent fields are nil pointers and
// serialize to JSON null.
type Molecule struct {
	MolName    string  `json:"mol_name"`
	NumAtoms   *uint32 `json:"num_atoms"`
	NumBonds   *uint32 `json:"num_bonds"`
	NumSubst   *uint32 `json:"num_subst"`
	NumFeat    *uint32 `json:"num_feat"`
	NumSets    *uint32 `json:"num_sets"`
	MolType    *string `json:"mol_type"`
	ChargeType *string `json:"charge_type"`
	StatusBits *string `json:"status_bits"`
	MolComment *string `json:"mol_comment"`
}

// Atom is one ATOM section entry. The first six fields are required;
// the last four are positional-optional: once one is absent every
// later one must be absent too.
type Atom struct {
	AtomID    uint16   `json:"atom_id"`
	AtomName  string   `json:"atom_name"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Z         float64  `json:"z"`
	AtomType  string   `json:"atom_type"`
	SubstID   *uint16  `json:"subst_id"`
	SubstName *string  `json:"subst_name"`
	Charge    *float32 `json:"charge"`
	StatusBit *string  `json:"status_bit"`
}

// Bond is one BOND section entry. Origin and target atom ids are not
// checked against the atoms present in the same record.
type Bond struct {
	BondID       uint16  `json:"bond_id"`
	OriginAtomID uint16  `json:"origin_atom_id"`
	TargetAtomID uint16  `json:"target_atom_id"`
	BondType     string  `json:"bond_type"`
	StatusBit    *string `json:"status_bit"`
}

// Substructure is one SUBSTRUCTURE section entry with seven
// positional-optional trailing fields.
type Substructure struct {
	SubstID    uint16  `json:"subst_id"`
	SubstName  string  `json:"subst_name"`
	RootAtom   uint16  `json:"root_atom"`
	SubstType  *string `json:"subst_type"`
	DictType   *int64  `json:"dict_type"`
	Chain      *string `json:"chain"`
	SubType    *string `json:"sub_type"`
	InterBonds *uint16 `json:"inter_bonds"`
	Status     *string `json:"status"`
	Comment    *string `json:"comment"`
}

// Record is one complete structural entry: a molecule header plus its
// atom, bond and substructure lists, and a free-text description tag
// attached at ingestion time. The description is not part of the mol2
// text format; it exists only in the store.
type Record struct {
	Molecule      *Molecule      `json:"molecule"`
	Atoms         []Atom         `json:"atom"`
	Bonds         []Bond         `json:"bond"`
	Substructures []Substructure `json:"substructure"`
	Desc          string         `json:"desc,omitempty"`
}

// AppendComment appends a comment to the molecule's comment field,
// joining with "; " when a comment is already present. Records without
// a molecule are left untouched; a molecule is never fabricated.
func (r *Record) AppendComment(comment string) {
	if comment == "" || r.Molecule == nil {
		return
	}
	if r.Molecule.MolComment != nil && *r.Molecule.MolComment != "" {
		joined := *r.Molecule.MolComment + "; " + comment
		r.Molecule.MolComment = &joined
		return
	}
	c := comment
	r.Molecule.MolComment = &c
}

func (r *Record) ensureMolecule() *Molecule {
	if r.Molecule == nil {
		r.Molecule = &Molecule{}
	}
	return r.Molecule
}
