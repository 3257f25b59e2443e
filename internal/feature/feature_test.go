package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/iwho"
)

func demoSchemes() []*iwho.Scheme { return iwho.BuildDemoCatalog() }

func TestSingletonLatticeLaws(t *testing.T) {
	schemes := demoSchemes()
	decl := Declaration{Name: FeatureMnemonic, Kind: KindSingleton}
	idx := BuildIndex(decl, BuiltinExtractors()[FeatureMnemonic], schemes)

	add := LiftSingleton(idx.RawValue("ADD_R64_R64"))
	mov := LiftSingleton(idx.RawValue("MOV_R64_R64"))
	top := Singleton{Top: true}

	assert.True(t, add.Subsumes(idx, add), "subsumes must be reflexive")
	assert.True(t, top.Subsumes(idx, add))
	assert.False(t, add.Subsumes(idx, mov))

	assert.Equal(t, add.Join(idx, add), add, "join must be idempotent")
	assert.Equal(t, add.Join(idx, mov), mov.Join(idx, add), "join must be commutative")
	assert.Equal(t, Value(top), add.Join(idx, top), "join with top is top")

	steps := 0
	cur := Value(add)
	for {
		next := cur.Relax(idx)
		if len(next) == 0 {
			break
		}
		cur = next[0]
		steps++
		require.Less(t, steps, 10, "relax must reach top in a bounded number of steps")
	}
	assert.Equal(t, Singleton{Top: true}, cur)
}

func TestSubsetLatticeLaws(t *testing.T) {
	schemes := demoSchemes()
	decl := Declaration{Name: FeatureCategory, Kind: KindSubset}
	idx := BuildIndex(decl, BuiltinExtractors()[FeatureCategory], schemes)

	binary := LiftSubset(idx.RawValue("ADD_R64_R64"))
	move := LiftSubset(idx.RawValue("MOV_R64_R64"))

	assert.True(t, binary.Subsumes(idx, binary))
	joined := binary.Join(idx, move)
	assert.True(t, joined.Subsumes(idx, binary))
	assert.True(t, joined.Subsumes(idx, move))
	assert.Equal(t, joined.Join(idx, joined), joined, "join idempotent")
	assert.Equal(t, binary.Join(idx, move), move.Join(idx, binary), "join commutative")

	full := Subset{Elements: cloneSet(idx.universe)}
	assert.True(t, full.Subsumes(idx, binary))
	assert.Empty(t, full.Relax(idx), "top has no relaxations")

	steps := 0
	cur := Value(binary)
	for {
		next := cur.Relax(idx)
		if len(next) == 0 {
			break
		}
		cur = next[0]
		steps++
		require.Less(t, steps, len(idx.universe)+2)
	}
}

func TestSubsetOrNotMixedPolarityJoinIsTop(t *testing.T) {
	schemes := demoSchemes()
	decl := Declaration{Name: FeatureMemoryUsage, Kind: KindSubsetOrNot}
	idx := BuildIndex(decl, BuiltinExtractors()[FeatureMemoryUsage], schemes)

	readWrite := LiftSubsetOrNot(idx.RawValue("ADD_M64_R64")) // {R,W}, IsIn
	none := LiftSubsetOrNot(idx.RawValue("ADD_R64_R64"))      // {}, IsIn

	assert.True(t, readWrite.Subsumes(idx, readWrite))
	joined := readWrite.Join(idx, none).(SubsetOrNot)
	assert.True(t, joined.IsIn)

	notIn := SubsetOrNot{Subfeature: map[string]struct{}{"R": {}}, IsIn: false}
	mixed := readWrite.Join(idx, notIn)
	assert.Equal(t, topSubsetOrNot(idx), mixed, "mixed polarity join is the conservative top")
	assert.False(t, notIn.Subsumes(idx, readWrite), "mixed polarity subsumes is conservatively false")
}

func TestEditDistanceLatticeLaws(t *testing.T) {
	schemes := demoSchemes()
	decl := Declaration{Name: FeatureMnemonic, Kind: KindEditDistance, MaxDist: 2}
	idx := BuildIndex(decl, BuiltinExtractors()[FeatureMnemonic], schemes)

	add := LiftEditDistance(idx.RawValue("ADD_R64_R64"), 2)
	assert.Equal(t, 0, add.CurrDist)

	next := add.Relax(idx)
	require.Len(t, next, 1)
	d1 := next[0].(EditDistance)
	assert.Equal(t, 1, d1.CurrDist)
	assert.True(t, d1.Subsumes(idx, add), "relaxed value must subsume the original")

	d2 := d1.Relax(idx)[0].(EditDistance)
	assert.Equal(t, 2, d2.CurrDist)
	top := d2.Relax(idx)[0].(EditDistance)
	assert.True(t, top.Top)
	assert.Empty(t, top.Relax(idx))

	other := EditDistance{Base: "mov", CurrDist: 0, MaxDist: 2}
	joined := add.Join(idx, other).(EditDistance)
	assert.True(t, joined.Top, "joining across distinct bases is conservatively top")
}

func TestManagerLiftAndLookupRoundTrip(t *testing.T) {
	schemes := demoSchemes()
	decls := []Declaration{
		{Name: FeatureMnemonic, Kind: KindSingleton},
		{Name: FeatureMemoryUsage, Kind: KindSubsetOrNot},
	}
	m, err := NewManager(decls, nil, schemes)
	require.NoError(t, err)

	var addScheme *iwho.Scheme
	for _, s := range schemes {
		if s.ID == "ADD_M64_R64" {
			addScheme = s
		}
	}
	require.NotNil(t, addScheme)

	values, err := m.LiftScheme(addScheme)
	require.NoError(t, err)

	mnemonicSet, err := m.Lookup(FeatureMnemonic, values[FeatureMnemonic])
	require.NoError(t, err)
	assert.True(t, mnemonicSet.Contains("ADD_M64_R64"))
	assert.True(t, mnemonicSet.Contains("ADD_R64_R64"), "same mnemonic, different opscheme")

	memUsage := values[FeatureMemoryUsage].(SubsetOrNot)
	assert.True(t, memUsage.IsIn)
	_, hasR := memUsage.Subfeature["R"]
	_, hasW := memUsage.Subfeature["W"]
	assert.True(t, hasR)
	assert.True(t, hasW)
}

func TestManagerUnknownFeatureIsConfigError(t *testing.T) {
	_, err := NewManager([]Declaration{{Name: "not-a-feature", Kind: KindSingleton}}, nil, demoSchemes())
	require.Error(t, err)
}
