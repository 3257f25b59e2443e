// Package interestingness implements the disagreement-scoring metric from
// spec §4.5.
package interestingness

import (
	"math"

	"anica/internal/predmanager"
)

// Metric scores batches of predictor readings against a configured
// threshold (spec §6.2: interestingness_metric.*).
type Metric struct {
	MinInterestingness     float64
	MostlyInterestingRatio float64
	Invert                 bool
}

// Score returns interestingness(bb) for one block's readings: max/min − 1
// over the finite positive values, or +Inf when some predictor failed
// while another produced a value, or 0 when every predictor failed (spec
// §9's standardized resolution for the all-failed case).
func (m Metric) Score(readings map[string]predmanager.Reading) float64 {
	var finite []float64
	anyFailed := false
	for _, r := range readings {
		if r.Failed {
			anyFailed = true
			continue
		}
		finite = append(finite, r.TP)
	}
	if len(finite) == 0 {
		return 0
	}
	if anyFailed {
		return math.Inf(1)
	}
	max, min := finite[0], finite[0]
	for _, v := range finite[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return max/min - 1
}

// IsInteresting reports whether score crosses the configured threshold,
// flipped by Invert (spec §4.5: "invert_interestingness flips the
// predicate, enabling searches for agreement").
func (m Metric) IsInteresting(score float64) bool {
	interesting := score >= m.MinInterestingness
	if m.Invert {
		return !interesting
	}
	return interesting
}

// BatchResult is one block's score-and-verdict pair, returned by
// ScoreBatch for traceability in generalization traces and witness files.
type BatchResult struct {
	Score       float64
	Interesting bool
}

// ScoreBatch scores every block in a batch and reports whether the batch as
// a whole is mostly interesting (spec §4.5: "at least mostly_interesting_ratio
// of its blocks are interesting").
func (m Metric) ScoreBatch(readingsPerBlock []map[string]predmanager.Reading) ([]BatchResult, bool) {
	results := make([]BatchResult, len(readingsPerBlock))
	interestingCount := 0
	for i, readings := range readingsPerBlock {
		score := m.Score(readings)
		interesting := m.IsInteresting(score)
		results[i] = BatchResult{Score: score, Interesting: interesting}
		if interesting {
			interestingCount++
		}
	}
	if len(results) == 0 {
		return results, false
	}
	ratio := float64(interestingCount) / float64(len(results))
	return results, ratio >= m.MostlyInterestingRatio
}
