package feature

import (
	"fmt"

	"anica/internal/anicaerr"
	"anica/internal/iwho"
)

// Manager is the Feature Manager (spec §4.1): given a list of declared
// features and an instruction-scheme universe, it builds and owns one
// eager, immutable Index per feature, in declaration order. Declaration
// order matters: γ of an abstract instruction is the progressive
// intersection of its per-feature γ's in that order, so cheaper or more
// selective features should come first in the configuration.
type Manager struct {
	decls      []Declaration
	extractors map[string]Extractor
	indexes    map[string]*Index
}

// NewManager builds the manager's indexes eagerly from decls and the
// filtered scheme universe. extra lets callers register extractors for
// features beyond the built-ins.
func NewManager(decls []Declaration, extra map[string]Extractor, schemes []*iwho.Scheme) (*Manager, error) {
	extractors := BuiltinExtractors()
	for name, ex := range extra {
		extractors[name] = ex
	}

	m := &Manager{
		decls:      decls,
		extractors: extractors,
		indexes:    make(map[string]*Index, len(decls)),
	}
	for _, d := range decls {
		ex, ok := extractors[d.Name]
		if !ok {
			return nil, anicaerr.Config(anicaerr.CodeUnknownKey, fmt.Sprintf("no extractor registered for feature %q", d.Name)).Build()
		}
		m.indexes[d.Name] = BuildIndex(d, ex, schemes)
	}
	return m, nil
}

// Declarations returns the feature declarations in configuration order.
func (m *Manager) Declarations() []Declaration { return m.decls }

// Index returns the forward index for a declared feature.
func (m *Manager) Index(name string) (*Index, bool) {
	idx, ok := m.indexes[name]
	return idx, ok
}

// ExtractFeature returns a scheme's raw concrete value for a feature, as
// extract_feature(scheme, name) in spec §4.1.
func (m *Manager) ExtractFeature(scheme *iwho.Scheme, name string) ([]string, error) {
	ex, ok := m.extractors[name]
	if !ok {
		return nil, anicaerr.Config(anicaerr.CodeUnknownKey, fmt.Sprintf("unknown feature %q", name)).Build()
	}
	return ex(scheme), nil
}

// Lookup returns γ(v) for a declared feature, i.e. lookup(abs_feature) in
// spec §4.1.
func (m *Manager) Lookup(name string, v Value) (iwho.SchemeSet, error) {
	idx, ok := m.indexes[name]
	if !ok {
		return nil, anicaerr.Config(anicaerr.CodeUnknownKey, fmt.Sprintf("unknown feature %q", name)).Build()
	}
	return v.Concretize(idx), nil
}

// LiftScheme returns, for every declared feature in order, the most precise
// Value representing scheme's concrete value under that feature's kind —
// the "each feature value becomes its singleton [i.e. most precise point]"
// step of lifting a concrete block (spec §3 Lifecycle).
func (m *Manager) LiftScheme(scheme *iwho.Scheme) (map[string]Value, error) {
	out := make(map[string]Value, len(m.decls))
	for _, d := range m.decls {
		raw, err := m.ExtractFeature(scheme, d.Name)
		if err != nil {
			return nil, err
		}
		out[d.Name] = m.liftRaw(d, raw)
	}
	return out, nil
}

func (m *Manager) liftRaw(d Declaration, raw []string) Value {
	switch d.Kind {
	case KindSingleton:
		return LiftSingleton(raw)
	case KindSubset:
		return LiftSubset(raw)
	case KindSubsetOrNot:
		return LiftSubsetOrNot(raw)
	case KindEditDistance:
		return LiftEditDistance(raw, d.MaxDist)
	default:
		return Singleton{Top: true}
	}
}

// TopValue returns ⊤ for a declared feature's kind.
func (m *Manager) TopValue(d Declaration) Value {
	switch d.Kind {
	case KindSingleton:
		return Singleton{Top: true}
	case KindSubset:
		idx := m.indexes[d.Name]
		return Subset{Elements: cloneSet(idx.universe)}
	case KindSubsetOrNot:
		idx := m.indexes[d.Name]
		return topSubsetOrNot(idx)
	case KindEditDistance:
		return EditDistance{Top: true, MaxDist: d.MaxDist}
	default:
		return Singleton{Top: true}
	}
}
