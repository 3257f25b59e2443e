package feature

import "anica/internal/iwho"

// EditDistance is (base, d ∈ [0, k]) or ⊤: schemes whose mnemonic is within
// edit distance d of base (spec §3 table). k (MaxDist) is fixed by the
// feature declaration.
type EditDistance struct {
	Top      bool
	Base     string
	CurrDist int
	MaxDist  int
}

func (e EditDistance) Kind() Kind { return KindEditDistance }

func (e EditDistance) Subsumes(idx *Index, other Value) bool {
	o := other.(EditDistance)
	if e.Top {
		return true
	}
	if o.Top {
		return false
	}
	return e.Base == o.Base && e.CurrDist >= o.CurrDist
}

func (e EditDistance) Join(idx *Index, other Value) Value {
	o := other.(EditDistance)
	if e.Top || o.Top {
		return EditDistance{Top: true, MaxDist: e.MaxDist}
	}
	if e.Base != o.Base {
		// No common finite ball contains both bases in general; ⊤ is the
		// sound (if not always least) upper bound. See DESIGN.md.
		return EditDistance{Top: true, MaxDist: e.MaxDist}
	}
	d := e.CurrDist
	if o.CurrDist > d {
		d = o.CurrDist
	}
	return EditDistance{Base: e.Base, CurrDist: d, MaxDist: e.MaxDist}
}

func (e EditDistance) Relax(idx *Index) []Value {
	if e.Top {
		return nil
	}
	if e.CurrDist >= e.MaxDist {
		return []Value{EditDistance{Top: true, MaxDist: e.MaxDist}}
	}
	return []Value{EditDistance{Base: e.Base, CurrDist: e.CurrDist + 1, MaxDist: e.MaxDist}}
}

func (e EditDistance) Concretize(idx *Index) iwho.SchemeSet {
	if e.Top {
		return idx.Universe()
	}
	return idx.schemesWithinEditDistance(e.Base, e.CurrDist)
}

func (e EditDistance) Marshal() any {
	m := map[string]any{"top": e.Top, "max_dist": e.MaxDist}
	if e.Top {
		m["base"] = ""
		m["curr_dist"] = nil
	} else {
		m["base"] = e.Base
		m["curr_dist"] = e.CurrDist
	}
	return m
}

// LiftEditDistance builds the most precise EditDistance (d=0) for a scalar
// raw value, bounded by maxDist.
func LiftEditDistance(raw []string, maxDist int) EditDistance {
	if len(raw) != 1 {
		return EditDistance{Top: true, MaxDist: maxDist}
	}
	return EditDistance{Base: raw[0], CurrDist: 0, MaxDist: maxDist}
}
