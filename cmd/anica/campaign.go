// SPDX-License-Identifier: Apache-2.0
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"anica/internal/anicaerr"
	"anica/internal/config"
	"anica/internal/discovery"
	"anica/internal/iwho"
)

// resolvedConfigDoc is the JSON shape campaign_config.json is written in:
// the same recognized-key structure a campaign was loaded from, but with
// filter file paths rewritten to point at the filter_files/ copies spec
// §6.4 names.
type resolvedConfigDoc struct {
	InsnFeatureManager struct {
		Features [][2]string `json:"features"`
	} `json:"insn_feature_manager"`
	IWHO struct {
		ContextSpecifier string           `json:"context_specifier"`
		Filters          []filterDocEntry `json:"filters"`
	} `json:"iwho"`
	InterestingnessMetric struct {
		MinInterestingness     float64 `json:"min_interestingness"`
		MostlyInterestingRatio float64 `json:"mostly_interesting_ratio"`
		InvertInterestingness  bool    `json:"invert_interestingness"`
	} `json:"interestingness_metric"`
	Discovery struct {
		DiscoveryBatchSize            int      `json:"discovery_batch_size"`
		DiscoveryPossibleBlockLengths []int    `json:"discovery_possible_block_lengths"`
		GeneralizationBatchSize       int      `json:"generalization_batch_size"`
		GeneralizationStrategy        [][2]any `json:"generalization_strategy"`
	} `json:"discovery"`
	Sampling struct {
		WrapInLoop bool `json:"wrap_in_loop"`
	} `json:"sampling"`
	MeasurementDB map[string]any `json:"measurement_db,omitempty"`
	PredManager   struct {
		RegistryPath string `json:"registry_path,omitempty"`
		NumProcesses *int   `json:"num_processes,omitempty"`
	} `json:"predmanager"`
	Predictors []string `json:"predictors"`
}

type filterDocEntry struct {
	Kind     string `json:"kind"`
	FilePath string `json:"file_path,omitempty"`
}

// copyFilterFiles copies every blacklist/whitelist filter file cfg
// references into campaignDir/filter_files, numbered in configured order,
// and returns the rewritten path for each copied entry keyed by its index
// into cfg.Filters.
func copyFilterFiles(cfg *config.Config, campaignDir string) (map[int]string, error) {
	rewrites := make(map[int]string)
	n := 0
	for i, f := range cfg.Filters {
		if f.Kind != "blacklist" && f.Kind != "whitelist" {
			continue
		}
		n++
		filterDir := filepath.Join(campaignDir, "filter_files")
		if err := os.MkdirAll(filterDir, 0o755); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.FilePath)
		if err != nil {
			return nil, anicaerr.Config(anicaerr.CodePathResolution, "could not read filter file "+f.FilePath).WithCause(err).Build()
		}
		name := fmt.Sprintf("filter_%02d_%s", n, filepath.Base(f.FilePath))
		dst := filepath.Join(filterDir, name)
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(campaignDir, dst)
		if err != nil {
			rel = dst
		}
		rewrites[i] = rel
	}
	return rewrites, nil
}

// writeResolvedConfig renders cfg as campaign_config.json, with filter
// paths replaced per rewrites.
func writeResolvedConfig(cfg *config.Config, path string, rewrites map[int]string) error {
	var doc resolvedConfigDoc
	for _, fd := range cfg.Features {
		doc.InsnFeatureManager.Features = append(doc.InsnFeatureManager.Features, [2]string{fd.Name, fd.Kind})
	}
	doc.IWHO.ContextSpecifier = cfg.ContextSpecifier
	for i, f := range cfg.Filters {
		entry := filterDocEntry{Kind: f.Kind, FilePath: f.FilePath}
		if rel, ok := rewrites[i]; ok {
			entry.FilePath = rel
		}
		doc.IWHO.Filters = append(doc.IWHO.Filters, entry)
	}
	doc.InterestingnessMetric.MinInterestingness = cfg.Interestingness.MinInterestingness
	doc.InterestingnessMetric.MostlyInterestingRatio = cfg.Interestingness.MostlyInterestingRatio
	doc.InterestingnessMetric.InvertInterestingness = cfg.Interestingness.InvertInterestingness
	doc.Discovery.DiscoveryBatchSize = cfg.Discovery.DiscoveryBatchSize
	doc.Discovery.DiscoveryPossibleBlockLengths = cfg.Discovery.DiscoveryPossibleBlockLengths
	doc.Discovery.GeneralizationBatchSize = cfg.Discovery.GeneralizationBatchSize
	for _, s := range cfg.Discovery.GeneralizationStrategy {
		doc.Discovery.GeneralizationStrategy = append(doc.Discovery.GeneralizationStrategy, [2]any{s.Name, s.N})
	}
	doc.Sampling.WrapInLoop = cfg.WrapInLoop
	doc.MeasurementDB = cfg.MeasurementDB
	doc.PredManager.RegistryPath = cfg.PredManager.RegistryPath
	if cfg.PredManager.NumProcessesSet {
		n := cfg.PredManager.NumProcesses
		doc.PredManager.NumProcesses = &n
	}
	doc.Predictors = cfg.PredictorPatterns

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeDiscovery persists one accepted discovery as
// discoveries/discovery_<id>.json.
func writeDiscovery(campaignDir string, ctx iwho.Context, d discovery.Discovery) error {
	dir := filepath.Join(campaignDir, "discoveries")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	doc := map[string]any{
		"id":          d.ID,
		"length":      d.Block.Len(),
		"block":       d.Block.Marshal(ctx),
		"witness_ref": d.Result.ResultRef,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("discovery_%s.json", d.ID)), data, 0o644)
}

// writeWitness persists one discovery's acceptance trace as
// witnesses/witness_<id>.json: the sequence of accepted expansions, each
// with the concrete witness blocks (assembled to text) that justified it.
func writeWitness(campaignDir string, ctx iwho.Context, d discovery.Discovery) error {
	dir := filepath.Join(campaignDir, "witnesses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	entries := make([]map[string]any, len(d.Result.Trace))
	for i, te := range d.Result.Trace {
		texts := make([]string, 0, len(te.Witnesses))
		for _, w := range te.Witnesses {
			if s, err := ctx.Assemble(w); err == nil {
				texts = append(texts, s)
			}
		}
		entries[i] = map[string]any{
			"pos":       te.Expansion.Pos,
			"feature":   te.Expansion.Feature,
			"score":     te.Score,
			"witnesses": texts,
		}
	}
	doc := map[string]any{"ref": d.Result.ResultRef, "trace": entries}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("witness_%s.json", d.Result.ResultRef)), data, 0o644)
}

