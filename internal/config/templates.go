package config

import (
	"encoding/json"

	"anica/internal/anicaerr"
)

// templateAllPredictorPairs is the one template directive spec §9 names:
// "TEMPLATE:all_predictor_pairs expands to C(n, 2) configs; this is a
// preprocessing pass on the config before the discovery loop runs."
const templateAllPredictorPairs = "TEMPLATE:all_predictor_pairs"

// ExpandTemplates inspects a raw config document's top-level "predictors"
// key. If it is the literal string templateAllPredictorPairs, it returns
// one raw document per unordered pair of availableKeys — C(n,2) documents,
// each with "predictors" replaced by that pair — in a deterministic order
// (lexicographic over the input key order). Any other document is returned
// unchanged, as a single-element slice, so callers can always run every
// config document through ExpandTemplates uniformly.
func ExpandTemplates(raw []byte, availableKeys []string) ([][]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "config document is not valid JSON").WithCause(err).Build()
	}

	predRaw, ok := doc["predictors"]
	if !ok {
		return [][]byte{raw}, nil
	}
	var asTemplate string
	if err := json.Unmarshal(predRaw, &asTemplate); err != nil || asTemplate != templateAllPredictorPairs {
		return [][]byte{raw}, nil
	}

	if len(availableKeys) < 2 {
		return nil, anicaerr.Config(anicaerr.CodeBadTemplate, templateAllPredictorPairs+" needs at least two available predictor keys").Build()
	}

	var out [][]byte
	for i := 0; i < len(availableKeys); i++ {
		for j := i + 1; j < len(availableKeys); j++ {
			pairDoc := make(map[string]json.RawMessage, len(doc))
			for k, v := range doc {
				pairDoc[k] = v
			}
			pairBytes, err := json.Marshal([2]string{availableKeys[i], availableKeys[j]})
			if err != nil {
				return nil, err
			}
			pairDoc["predictors"] = pairBytes
			expanded, err := json.Marshal(pairDoc)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded)
		}
	}
	return out, nil
}
