package predmanager

import (
	"context"
	"encoding/json"
	"os"

	"anica/internal/anicaerr"
	"anica/internal/iwho"
)

// registryDoc is the JSON shape loaded from predmanager.registry_path: a
// flat list of predictor definitions. This stands in for the real registry
// of external predictor processes the core's predmanager.Manager contract
// is written against (spec §4.4 treats predictors as an opaque black box),
// letting check-predictors and discover run end-to-end without a live
// predictor fleet.
type registryDoc struct {
	Predictors []registryEntry `json:"predictors"`
}

type registryEntry struct {
	Key                 string             `json:"key"`
	Base                float64            `json:"base"`
	MnemonicMultipliers map[string]float64 `json:"mnemonic_multipliers"`
	InsnFilterFiles     []string           `json:"insn_filter_files"`
}

// LoadRegistry reads a JSON registry document and builds one synthetic
// Predictor per entry, plus its configured unsupported-instruction filter
// files.
func LoadRegistry(path string) ([]Predictor, map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, anicaerr.Config(anicaerr.CodePathResolution, "could not read predictor registry "+path).WithCause(err).Build()
	}
	var doc registryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, anicaerr.Config(anicaerr.CodeInvalidOption, "predictor registry is not valid JSON").WithCause(err).Build()
	}

	preds := make([]Predictor, 0, len(doc.Predictors))
	filterFiles := make(map[string][]string, len(doc.Predictors))
	for _, e := range doc.Predictors {
		base := e.Base
		if base <= 0 {
			base = 1.0
		}
		preds = append(preds, scaledPredictor{key: e.Key, base: base, mul: e.MnemonicMultipliers})
		if len(e.InsnFilterFiles) > 0 {
			filterFiles[e.Key] = e.InsnFilterFiles
		}
	}
	return preds, filterFiles, nil
}

// scaledPredictor reports a base cycles-per-iteration value scaled by a
// multiplier looked up by the scheme id of the block's first instruction
// (the registry's mnemonic_multipliers map is keyed by scheme id, not by
// mnemonic), the same shape
// internal/discovery's tests use as a controllable stand-in predictor.
type scaledPredictor struct {
	key  string
	base float64
	mul  map[string]float64
}

func (p scaledPredictor) Key() string { return p.key }

func (p scaledPredictor) Predict(_ context.Context, bb *iwho.ConcreteBlock) (float64, error) {
	if len(bb.Instructions) == 0 {
		return p.base, nil
	}
	mult, ok := p.mul[string(bb.Instructions[0].Scheme)]
	if !ok {
		mult = 1.0
	}
	return p.base * mult, nil
}
