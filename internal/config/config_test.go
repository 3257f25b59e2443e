package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/anicaerr"
)

const sampleDoc = `{
  "insn_feature_manager": {"features": [["mnemonic", "editdistance(3)"], ["category", "subset"]]},
  "iwho": {"context_specifier": "x86-64-demo", "filters": [{"kind": "blacklist", "file_path": "./bl.csv"}]},
  "interestingness_metric": {"min_interestingness": 0.5, "mostly_interesting_ratio": 0.6},
  "discovery": {"discovery_batch_size": 100, "discovery_possible_block_lengths": [1,2,3],
                "generalization_batch_size": 50, "generalization_strategy": [["random", 4]]},
  "predictors": ["ithemal.0", "uica.0"]
}`

func TestParseResolvesPathsAndRequiredKeys(t *testing.T) {
	cfg, err := Parse([]byte(sampleDoc), "/campaigns/run1")
	require.NoError(t, err)
	assert.Equal(t, "x86-64-demo", cfg.ContextSpecifier)
	assert.Equal(t, "/campaigns/run1/bl.csv", cfg.Filters[0].FilePath)
	assert.Equal(t, 100, cfg.Discovery.DiscoveryBatchSize)
	assert.Equal(t, []int{1, 2, 3}, cfg.Discovery.DiscoveryPossibleBlockLengths)
	assert.Equal(t, "random", cfg.Discovery.GeneralizationStrategy[0].Name)
	assert.Equal(t, 4, cfg.Discovery.GeneralizationStrategy[0].N)
	assert.Equal(t, []string{"ithemal.0", "uica.0"}, cfg.PredictorPatterns)
}

func TestParseRejectsUnknownTopLevelKey(t *testing.T) {
	doc := `{"insn_feature_manager": {"features": [["mnemonic", "singleton"]]}, "bogus_key": {}}`
	_, err := Parse([]byte(doc), "/base")
	require.Error(t, err)
	ae, ok := anicaerr.As(err, anicaerr.KindConfig)
	require.True(t, ok)
	assert.Equal(t, anicaerr.CodeUnknownKey, ae.Code)
}

func TestParseRejectsMissingRequiredKey(t *testing.T) {
	doc := `{"insn_feature_manager": {"features": [["mnemonic", "singleton"]]}}`
	_, err := Parse([]byte(doc), "/base")
	require.Error(t, err)
	_, ok := anicaerr.As(err, anicaerr.KindConfig)
	assert.True(t, ok)
}

func TestResolvePathExpandsBaseDirToken(t *testing.T) {
	assert.Equal(t, "/base/filters/x.csv", ResolvePath("${BASE_DIR}/filters/x.csv", "/base"))
	assert.Equal(t, "/base/rel.csv", ResolvePath("./rel.csv", "/base"))
	assert.Equal(t, "/abs/rel.csv", ResolvePath("/abs/rel.csv", "/base"))
}

func TestParseToleratesCamelCaseKeyAliases(t *testing.T) {
	doc := `{"insnFeatureManager": {"features": [["mnemonic", "singleton"]]},
	         "iwho": {"context_specifier": "x"},
	         "discovery": {"discovery_batch_size": 10, "discovery_possible_block_lengths": [1]},
	         "predictors": ["a", "b"]}`
	cfg, err := Parse([]byte(doc), "/base")
	require.NoError(t, err)
	assert.Len(t, cfg.Features, 1)
}

func TestExpandTemplatesAllPredictorPairs(t *testing.T) {
	doc := []byte(`{"predictors": "TEMPLATE:all_predictor_pairs", "discovery": {}}`)
	out, err := ExpandTemplates(doc, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3) // C(3,2)

	var seen [][2]string
	for _, d := range out {
		var parsed struct {
			Predictors [2]string `json:"predictors"`
		}
		require.NoError(t, json.Unmarshal(d, &parsed))
		seen = append(seen, parsed.Predictors)
	}
	assert.Contains(t, seen, [2]string{"a", "b"})
	assert.Contains(t, seen, [2]string{"a", "c"})
	assert.Contains(t, seen, [2]string{"b", "c"})
}

func TestExpandTemplatesPassesThroughNonTemplateDocs(t *testing.T) {
	doc := []byte(`{"predictors": ["x", "y"]}`)
	out, err := ExpandTemplates(doc, []string{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, string(doc), string(out[0]))
}

func TestCheckConfigRejectsUnknownFilterKind(t *testing.T) {
	cfg := &Config{
		ContextSpecifier: "x",
		Filters:          []FilterSpec{{Kind: "mystery"}},
	}
	err := CheckConfig(cfg)
	require.Error(t, err)
	ae, ok := anicaerr.As(err, anicaerr.KindConfig)
	require.True(t, ok)
	assert.Equal(t, anicaerr.CodeInvalidOption, ae.Code)
}
