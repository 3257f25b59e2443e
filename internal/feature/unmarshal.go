package feature

import (
	"fmt"

	"anica/internal/anicaerr"
)

// UnmarshalValue reconstructs a Value of the given kind from the JSON-ready
// representation Marshal produces — the deserialization half of spec §6.1's
// "parsing followed by re-emitting must be byte-identical" round trip.
// maxDist is only consulted for KindEditDistance: the max_dist Marshal
// writes into each value is ignored here, and the declaration's maxDist is
// used instead.
func UnmarshalValue(kind Kind, maxDist int, raw any) (Value, error) {
	switch kind {
	case KindSingleton:
		s, ok := raw.(string)
		if !ok {
			return nil, malformed("singleton feature value must be a string, got %T", raw)
		}
		if s == topSentinel {
			return Singleton{Top: true}, nil
		}
		return Singleton{Value: s}, nil

	case KindSubset:
		elems, err := stringSlice(raw)
		if err != nil {
			return nil, err
		}
		return NewSubset(elems...), nil

	case KindSubsetOrNot:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, malformed("subset_or_definitely_not feature value must be an object, got %T", raw)
		}
		elems, err := stringSlice(m["subfeature"])
		if err != nil {
			return nil, err
		}
		isIn, _ := m["is_in_subfeature"].(bool)
		set := make(map[string]struct{}, len(elems))
		for _, e := range elems {
			set[e] = struct{}{}
		}
		return SubsetOrNot{Subfeature: set, IsIn: isIn}, nil

	case KindEditDistance:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, malformed("editdistance feature value must be an object, got %T", raw)
		}
		top, _ := m["top"].(bool)
		if top {
			return EditDistance{Top: true, MaxDist: maxDist}, nil
		}
		base, _ := m["base"].(string)
		currDist, ok := m["curr_dist"].(float64)
		if !ok {
			return nil, malformed("editdistance curr_dist must be a number when top is false")
		}
		return EditDistance{Base: base, CurrDist: int(currDist), MaxDist: maxDist}, nil

	default:
		return nil, malformed("unrecognized feature kind %q", kind)
	}
}

func stringSlice(raw any) ([]string, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed("expected a JSON array of strings, got %T", raw)
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, malformed("expected a string array element, got %T", v)
		}
		out[i] = s
	}
	return out, nil
}

func malformed(format string, args ...any) error {
	return anicaerr.IWHO(anicaerr.CodeMalformedSerialization, fmt.Sprintf(format, args...)).Build()
}
