package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltools/mol2db/pkg/mol2"
)

func u16p(v uint16) *uint16   { return &v }
func f32p(v float32) *float32 { return &v }
func i64p(v int64) *int64     { return &v }
func strp(s string) *string   { return &s }

func TestAtoms_EncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		atoms []mol2.Atom
	}{
		{"empty list", []mol2.Atom{}},
		{"required only", []mol2.Atom{
			{AtomID: 1, AtomName: "C1", X: 0.5, Y: -1.25, Z: 3.75, AtomType: "C.3"},
		}},
		{"full tail", []mol2.Atom{
			{AtomID: 65535, AtomName: "N1", X: 1e-9, Y: 2e9, Z: 0, AtomType: "N.am",
				SubstID: u16p(12), SubstName: strp("ALA12"), Charge: f32p(-0.38), StatusBit: strp("DSPMOD")},
		}},
		{"mixed tails", []mol2.Atom{
			{AtomID: 1, AtomName: "C1", AtomType: "C.3"},
			{AtomID: 2, AtomName: "C2", AtomType: "C.3", SubstID: u16p(1)},
			{AtomID: 3, AtomName: "C3", AtomType: "C.3", SubstID: u16p(1), SubstName: strp("R")},
			{AtomID: 4, AtomName: "C4", AtomType: "C.3", SubstID: u16p(1), SubstName: strp("R"), Charge: f32p(0.1)},
		}},
		{"empty strings", []mol2.Atom{
			{AtomID: 0, AtomName: "", AtomType: "", SubstID: u16p(0), SubstName: strp("")},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeAtoms(EncodeAtoms(tc.atoms))
			require.NoError(t, err)
			if len(tc.atoms) == 0 {
				assert.Empty(t, decoded)
				return
			}
			assert.Equal(t, tc.atoms, decoded)
		})
	}
}

func TestBonds_EncodeDecodeRoundTrip(t *testing.T) {
	bonds := []mol2.Bond{
		{BondID: 1, OriginAtomID: 1, TargetAtomID: 2, BondType: "ar"},
		{BondID: 2, OriginAtomID: 2, TargetAtomID: 9999, BondType: "1", StatusBit: strp("BACKBONE")},
	}
	decoded, err := DecodeBonds(EncodeBonds(bonds))
	require.NoError(t, err)
	assert.Equal(t, bonds, decoded)
}

func TestSubstructures_EncodeDecodeRoundTrip(t *testing.T) {
	subs := []mol2.Substructure{
		{SubstID: 1, SubstName: "RES1", RootAtom: 1},
		{SubstID: 2, SubstName: "RES2", RootAtom: 4, SubstType: strp("RESIDUE"), DictType: i64p(-7)},
		{SubstID: 3, SubstName: "RES3", RootAtom: 9, SubstType: strp("RESIDUE"), DictType: i64p(1),
			Chain: strp("A"), SubType: strp("ALA"), InterBonds: u16p(2), Status: strp("ROOT"),
			Comment: strp("acomment")},
	}
	decoded, err := DecodeSubstructures(EncodeSubstructures(subs))
	require.NoError(t, err)
	assert.Equal(t, subs, decoded)
}

func TestDecode_ShortData(t *testing.T) {
	atoms := []mol2.Atom{{AtomID: 1, AtomName: "C1", AtomType: "C.3"}}
	encoded := EncodeAtoms(atoms)

	for _, n := range []int{1, 3, len(encoded) / 2, len(encoded) - 1} {
		_, err := DecodeAtoms(encoded[:n])
		assert.ErrorIs(t, err, ErrShortData, "truncated to %d bytes", n)
	}
}

func TestDecode_CountExceedsData(t *testing.T) {
	// A count header claiming more entries than the blob could hold
	// must fail before allocating.
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := DecodeAtoms(data)
	assert.ErrorIs(t, err, ErrShortData)

	_, err = DecodeBonds(data)
	assert.ErrorIs(t, err, ErrShortData)

	_, err = DecodeSubstructures(data)
	assert.ErrorIs(t, err, ErrShortData)
}

func TestDecode_EmptyInput(t *testing.T) {
	_, err := DecodeAtoms(nil)
	assert.ErrorIs(t, err, ErrShortData)
}

func TestDecode_InvalidTrailingCount(t *testing.T) {
	atoms := []mol2.Atom{{AtomID: 1, AtomName: "C", AtomType: "C.3"}}
	encoded := EncodeAtoms(atoms)
	// The trailing-count byte is the last one for a tail-less atom.
	encoded[len(encoded)-1] = 9
	_, err := DecodeAtoms(encoded)
	assert.ErrorContains(t, err, "invalid trailing field count")
}

func TestEncode_PrefixTruncatesHoles(t *testing.T) {
	// A present field after an absent one violates the caller
	// invariant; the encoder silently truncates at the hole, same as
	// the text serializer.
	atoms := []mol2.Atom{
		{AtomID: 1, AtomName: "C1", AtomType: "C.3", SubstName: strp("RES1"), Charge: f32p(2)},
	}
	decoded, err := DecodeAtoms(EncodeAtoms(atoms))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Nil(t, decoded[0].SubstID)
	assert.Nil(t, decoded[0].SubstName)
	assert.Nil(t, decoded[0].Charge)
}
