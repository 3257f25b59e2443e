package feature

import "anica/internal/iwho"

// Built-in feature names (spec §3).
const (
	FeatureExactScheme  = "exact_scheme"
	FeatureMnemonic     = "mnemonic"
	FeatureOpSchemes    = "opschemes"
	FeatureMemoryUsage  = "memory_usage"
	FeatureCategory     = "category"
	FeatureExtension    = "extension"
	FeatureISASet       = "isa-set"
)

// BuiltinExtractors returns the extractor for every built-in feature name.
// Features are extensible (spec §3); callers register additional extractors
// with the same Extractor signature and merge them into this map.
func BuiltinExtractors() map[string]Extractor {
	return map[string]Extractor{
		FeatureExactScheme: func(s *iwho.Scheme) []string { return []string{string(s.ID)} },
		FeatureMnemonic:    func(s *iwho.Scheme) []string { return []string{s.Mnemonic} },
		FeatureOpSchemes: func(s *iwho.Scheme) []string {
			if len(s.OpSchemes) == 0 {
				return nil
			}
			out := make([]string, len(s.OpSchemes))
			copy(out, s.OpSchemes)
			return out
		},
		FeatureMemoryUsage: func(s *iwho.Scheme) []string {
			if s.Memory == nil {
				return nil
			}
			var tags []string
			if s.Memory.Read {
				tags = append(tags, "R")
			}
			if s.Memory.Write {
				tags = append(tags, "W")
			}
			return tags
		},
		FeatureCategory:  func(s *iwho.Scheme) []string { return []string{s.Category} },
		FeatureExtension: func(s *iwho.Scheme) []string { return []string{s.Extension} },
		FeatureISASet:    func(s *iwho.Scheme) []string { return []string{s.ISASet} },
	}
}
