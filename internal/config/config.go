// Package config loads and validates the single JSON campaign document
// from spec §6.2: a fixed set of recognized top-level keys, each with its
// own resolved Go representation, plus the path-resolution and template
// expansion rules the spec's design notes call out.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"anica/internal/anicaerr"
)

// FeatureDecl is one entry of insn_feature_manager.features: a declared
// feature name paired with its abstraction kind.
type FeatureDecl struct {
	Name string
	Kind string
}

// FilterSpec is one entry of iwho.filters.
type FilterSpec struct {
	Kind     string // "no_cf" | "with_measurements" | "blacklist" | "whitelist"
	FilePath string // for blacklist/whitelist
}

// InterestingnessSpec mirrors interestingness_metric.*.
type InterestingnessSpec struct {
	MinInterestingness     float64
	MostlyInterestingRatio float64
	InvertInterestingness  bool
}

// StrategySpec is one entry of discovery.generalization_strategy: a
// strategy name ("random", "max_benefit", "interactive") and its N
// (meaningful only for "random").
type StrategySpec struct {
	Name string
	N    int
}

// TerminationSpec mirrors discovery.termination: any conjunction of the
// criteria spec §4.8 names. A zero field means "no bound from this
// criterion"; the explicit stop signal is wired in by the caller, not
// carried in configuration.
type TerminationSpec struct {
	MaxDiscoveries  int
	MaxStaleBatches int
	MaxDuration     time.Duration
}

// DiscoverySpec mirrors discovery.*.
type DiscoverySpec struct {
	DiscoveryBatchSize            int
	DiscoveryPossibleBlockLengths []int
	GeneralizationBatchSize       int
	GeneralizationStrategy        []StrategySpec
	Termination                   TerminationSpec
}

// PredManagerSpec mirrors predmanager.*.
type PredManagerSpec struct {
	RegistryPath string
	NumProcesses int // <=0 means all cores; the config loader distinguishes "absent" (in-process) via NumProcessesSet
	NumProcessesSet bool
}

// Config is the fully resolved, validated campaign configuration (spec
// §6.2). Every field here corresponds to one recognized top-level key;
// unrecognized keys are a ConfigError at load time (§6.2: "the listed
// options are the *only* ones the core reads").
type Config struct {
	Features              []FeatureDecl
	ContextSpecifier      string
	Filters               []FilterSpec
	Interestingness        InterestingnessSpec
	Discovery              DiscoverySpec
	WrapInLoop              bool
	MeasurementDB           map[string]any
	PredManager             PredManagerSpec

	// PredictorPatterns is the list of predictor key regex patterns this
	// campaign compares (resolved against the predictor manager via
	// ResolveKeyPatterns). A literal "TEMPLATE:all_predictor_pairs" here
	// must be expanded by ExpandTemplates before Parse is called — Parse
	// rejects it outright, since the core's discovery loop needs one
	// concrete pair per campaign.
	PredictorPatterns []string

	// BaseDir is the directory the config file lives in, used to resolve
	// ${BASE_DIR} and leading-"." relative paths (§6.2).
	BaseDir string
}

// recognizedTopLevelKeys enumerates every key §6.2 lists. A config document
// carrying any other top-level key is rejected outright.
var recognizedTopLevelKeys = map[string]bool{
	"insn_feature_manager": true,
	"iwho":                 true,
	"interestingness_metric": true,
	"discovery":            true,
	"sampling":             true,
	"measurement_db":       true,
	"predmanager":          true,
	"predictors":           true,
}

// Load reads, parses, path-resolves, and validates the config document at
// path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "could not read config file "+path).WithCause(err).Build()
	}
	return Parse(raw, filepath.Dir(path))
}

// Parse parses an already-read config document; baseDir is the directory
// relative paths and ${BASE_DIR} resolve against.
func Parse(raw []byte, baseDir string) (*Config, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "config document is not valid JSON").WithCause(err).Build()
	}

	for key := range doc {
		norm := normalizeKey(key)
		if !recognizedTopLevelKeys[norm] {
			return nil, anicaerr.Config(anicaerr.CodeUnknownKey, "unrecognized top-level configuration key "+key).Build()
		}
	}

	cfg := &Config{BaseDir: baseDir}

	if raw, ok := lookupAny(doc, "insn_feature_manager"); ok {
		var section struct {
			Features [][2]string `json:"features"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "insn_feature_manager.features must be a list of [name, kind] pairs").WithCause(err).Build()
		}
		for _, pair := range section.Features {
			cfg.Features = append(cfg.Features, FeatureDecl{Name: pair[0], Kind: pair[1]})
		}
	}
	if len(cfg.Features) == 0 {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing required key insn_feature_manager.features").Build()
	}

	if raw, ok := lookupAny(doc, "iwho"); ok {
		var section struct {
			ContextSpecifier string `json:"context_specifier"`
			Filters          []struct {
				Kind     string `json:"kind"`
				FilePath string `json:"file_path"`
			} `json:"filters"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed iwho section").WithCause(err).Build()
		}
		cfg.ContextSpecifier = section.ContextSpecifier
		for _, f := range section.Filters {
			if (f.Kind == "blacklist" || f.Kind == "whitelist") && f.FilePath != "" {
				f.FilePath = ResolvePath(f.FilePath, baseDir)
			}
			cfg.Filters = append(cfg.Filters, FilterSpec{Kind: f.Kind, FilePath: f.FilePath})
		}
	}
	if cfg.ContextSpecifier == "" {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing required key iwho.context_specifier").Build()
	}

	if raw, ok := lookupAny(doc, "interestingness_metric"); ok {
		var section struct {
			MinInterestingness     float64 `json:"min_interestingness"`
			MostlyInterestingRatio float64 `json:"mostly_interesting_ratio"`
			InvertInterestingness  bool    `json:"invert_interestingness"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed interestingness_metric section").WithCause(err).Build()
		}
		if section.MostlyInterestingRatio < 0 || section.MostlyInterestingRatio > 1 {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "interestingness_metric.mostly_interesting_ratio must be in [0,1]").Build()
		}
		cfg.Interestingness = InterestingnessSpec{
			MinInterestingness:     section.MinInterestingness,
			MostlyInterestingRatio: section.MostlyInterestingRatio,
			InvertInterestingness:  section.InvertInterestingness,
		}
	}

	if raw, ok := lookupAny(doc, "discovery"); ok {
		var section struct {
			DiscoveryBatchSize            int      `json:"discovery_batch_size"`
			DiscoveryPossibleBlockLengths []int    `json:"discovery_possible_block_lengths"`
			GeneralizationBatchSize       int      `json:"generalization_batch_size"`
			GeneralizationStrategy        [][2]any `json:"generalization_strategy"`
			Termination                   struct {
				MaxDiscoveries  int     `json:"max_discoveries"`
				MaxStaleBatches int     `json:"max_stale_batches"`
				Days            float64 `json:"days"`
				Hours           float64 `json:"hours"`
				Minutes         float64 `json:"minutes"`
				Seconds         float64 `json:"seconds"`
			} `json:"termination"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed discovery section").WithCause(err).Build()
		}
		cfg.Discovery = DiscoverySpec{
			DiscoveryBatchSize:            section.DiscoveryBatchSize,
			DiscoveryPossibleBlockLengths: section.DiscoveryPossibleBlockLengths,
			GeneralizationBatchSize:       section.GeneralizationBatchSize,
			Termination: TerminationSpec{
				MaxDiscoveries:  section.Termination.MaxDiscoveries,
				MaxStaleBatches: section.Termination.MaxStaleBatches,
				MaxDuration: time.Duration(section.Termination.Seconds*float64(time.Second)) +
					time.Duration(section.Termination.Minutes*float64(time.Minute)) +
					time.Duration(section.Termination.Hours*float64(time.Hour)) +
					time.Duration(section.Termination.Days*24*float64(time.Hour)),
			},
		}
		for _, pair := range section.GeneralizationStrategy {
			name, _ := pair[0].(string)
			n := 0
			if f, ok := pair[1].(float64); ok {
				n = int(f)
			}
			cfg.Discovery.GeneralizationStrategy = append(cfg.Discovery.GeneralizationStrategy, StrategySpec{Name: name, N: n})
		}
	}
	if cfg.Discovery.DiscoveryBatchSize <= 0 {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing or non-positive discovery.discovery_batch_size").Build()
	}
	if len(cfg.Discovery.DiscoveryPossibleBlockLengths) == 0 {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing discovery.discovery_possible_block_lengths").Build()
	}

	if raw, ok := lookupAny(doc, "sampling"); ok {
		var section struct {
			WrapInLoop bool `json:"wrap_in_loop"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed sampling section").WithCause(err).Build()
		}
		cfg.WrapInLoop = section.WrapInLoop
	}

	if raw, ok := lookupAny(doc, "measurement_db"); ok && string(raw) != "null" {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed measurement_db section").WithCause(err).Build()
		}
		cfg.MeasurementDB = m
	}

	if raw, ok := lookupAny(doc, "predmanager"); ok {
		var section struct {
			RegistryPath string `json:"registry_path"`
			NumProcesses *int   `json:"num_processes"`
		}
		if err := json.Unmarshal(raw, &section); err != nil {
			return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "malformed predmanager section").WithCause(err).Build()
		}
		cfg.PredManager.RegistryPath = ResolvePath(section.RegistryPath, baseDir)
		if section.NumProcesses != nil {
			cfg.PredManager.NumProcesses = *section.NumProcesses
			cfg.PredManager.NumProcessesSet = true
		}
	}

	if raw, ok := lookupAny(doc, "predictors"); ok {
		var asTemplate string
		if err := json.Unmarshal(raw, &asTemplate); err == nil {
			if asTemplate == templateAllPredictorPairs {
				return nil, anicaerr.Config(anicaerr.CodeBadTemplate, "predictors: "+templateAllPredictorPairs+" must be expanded via ExpandTemplates before Parse").Build()
			}
			cfg.PredictorPatterns = []string{asTemplate}
		} else {
			var patterns []string
			if err := json.Unmarshal(raw, &patterns); err != nil {
				return nil, anicaerr.Config(anicaerr.CodeInvalidOption, "predictors must be a list of key patterns or "+templateAllPredictorPairs).WithCause(err).Build()
			}
			cfg.PredictorPatterns = patterns
		}
	}
	if len(cfg.PredictorPatterns) == 0 {
		return nil, anicaerr.Config(anicaerr.CodeMissingOption, "missing required key predictors").Build()
	}

	return cfg, nil
}

// normalizeKey tolerates snake_case and camelCase spellings of a top-level
// key, the way the teacher's internal/types registry normalizes identifier
// forms before lookup.
func normalizeKey(key string) string {
	return strcase.ToSnake(key)
}

func lookupAny(doc map[string]json.RawMessage, wantSnake string) (json.RawMessage, bool) {
	for key, raw := range doc {
		if normalizeKey(key) == wantSnake {
			return raw, true
		}
	}
	return nil, false
}

// ResolvePath expands ${BASE_DIR} and leading-"." relative paths against
// baseDir (spec §6.2: "Relative paths beginning with . resolve relative to
// the config file; ${BASE_DIR} expands to the enclosing config directory").
func ResolvePath(p, baseDir string) string {
	if p == "" {
		return p
	}
	if strings.Contains(p, "${BASE_DIR}") {
		return strings.ReplaceAll(p, "${BASE_DIR}", baseDir)
	}
	if strings.HasPrefix(p, ".") {
		return filepath.Join(baseDir, p)
	}
	return p
}

// CheckConfig validates cfg without running a campaign, for the
// --check-config discover flag (spec §6.3).
func CheckConfig(cfg *Config) error {
	if cfg.ContextSpecifier == "" {
		return anicaerr.Config(anicaerr.CodeMissingOption, "iwho.context_specifier is required").Build()
	}
	for _, f := range cfg.Filters {
		switch f.Kind {
		case "no_cf", "with_measurements":
		case "blacklist", "whitelist":
			if f.FilePath == "" {
				return anicaerr.Config(anicaerr.CodeInvalidOption, fmt.Sprintf("%s filter requires file_path", f.Kind)).Build()
			}
			if _, err := os.Stat(f.FilePath); err != nil {
				return anicaerr.Config(anicaerr.CodePathResolution, "filter file not found: "+f.FilePath).WithCause(err).Build()
			}
		default:
			return anicaerr.Config(anicaerr.CodeInvalidOption, "unrecognized filter kind "+f.Kind).Build()
		}
	}
	for _, s := range cfg.Discovery.GeneralizationStrategy {
		switch s.Name {
		case "random", "max_benefit", "interactive":
		default:
			return anicaerr.Config(anicaerr.CodeInvalidOption, "unrecognized generalization strategy "+s.Name).Build()
		}
	}
	return nil
}
