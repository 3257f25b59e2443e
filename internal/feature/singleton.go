package feature

import "anica/internal/iwho"

// Singleton is ⊤ or exactly one concrete value (spec §3 table).
type Singleton struct {
	Top   bool
	Value string
}

func (s Singleton) Kind() Kind { return KindSingleton }

func (s Singleton) Subsumes(idx *Index, other Value) bool {
	o := other.(Singleton)
	if s.Top {
		return true
	}
	if o.Top {
		return false
	}
	return s.Value == o.Value
}

func (s Singleton) Join(idx *Index, other Value) Value {
	o := other.(Singleton)
	if s.Top || o.Top {
		return Singleton{Top: true}
	}
	if s.Value == o.Value {
		return s
	}
	return Singleton{Top: true}
}

func (s Singleton) Relax(idx *Index) []Value {
	if s.Top {
		return nil
	}
	return []Value{Singleton{Top: true}}
}

func (s Singleton) Concretize(idx *Index) iwho.SchemeSet {
	if s.Top {
		return idx.Universe()
	}
	return idx.schemesWithRawEqual(s.Value)
}

func (s Singleton) Marshal() any {
	if s.Top {
		return topSentinel
	}
	return s.Value
}

// LiftSingleton builds the most precise Singleton for a scalar raw value.
func LiftSingleton(raw []string) Singleton {
	if len(raw) != 1 {
		return Singleton{Top: true}
	}
	return Singleton{Value: raw[0]}
}
