// Package anicaerr defines AnICA's closed set of error kinds and a
// colorized reporter for surfacing them on the CLI.
//
// Error code ranges mirror the kind they belong to:
//
//	A0001-A0099: ConfigError   (invalid or missing configuration)
//	A0100-A0199: IWHOError     (instruction not representable in the scheme universe)
//	A0200-A0299: SamplingError (abstract block infeasible or oversampled)
//	A0300-A0399: PredictorError (per-block-per-predictor failure)
//	A0400-A0499: DiscoveryError (unrecoverable discovery-loop state)
//	A0500-A0599: UserInterrupt (cooperative cancellation)
package anicaerr

// Kind distinguishes the error categories from spec §7. Each kind carries a
// fixed recoverability: recoverable kinds never leave the core, fatal kinds
// abort the current command.
type Kind string

const (
	KindConfig      Kind = "ConfigError"
	KindIWHO        Kind = "IWHOError"
	KindSampling    Kind = "SamplingError"
	KindPredictor   Kind = "PredictorError"
	KindDiscovery   Kind = "DiscoveryError"
	KindUserAbort   Kind = "UserInterrupt"
)

const (
	// ConfigError codes
	CodeMissingOption   = "A0001"
	CodeInvalidOption   = "A0002"
	CodeUnknownKey      = "A0003"
	CodeBadTemplate     = "A0004"
	CodePathResolution  = "A0005"

	// IWHOError codes
	CodeSchemeNotFound     = "A0100"
	CodeOperandUnsupported = "A0101"
	CodeFilterFileInvalid  = "A0102"
	CodeMalformedSerialization = "A0103"

	// SamplingError codes
	CodeEmptyConcretization  = "A0200"
	CodeAliasingOverconstrained = "A0201"
	CodeSampleRetriesExhausted  = "A0202"

	// PredictorError codes
	CodeNonPositiveTP  = "A0300"
	CodePredictorTimeout = "A0301"
	CodePredictorCrash = "A0302"

	// DiscoveryError codes
	CodeNoSatisfiableTop = "A0400"
	CodeCampaignAborted  = "A0401"

	// UserInterrupt codes
	CodeBatchBoundaryStop = "A0500"
)

// Recoverable reports whether errors of this kind are handled locally by the
// core (SamplingError, PredictorError) rather than aborting the current
// command.
func (k Kind) Recoverable() bool {
	switch k {
	case KindSampling, KindPredictor:
		return true
	default:
		return false
	}
}

var descriptions = map[string]string{
	CodeMissingOption:           "a required configuration key is absent",
	CodeInvalidOption:           "a configuration value has the wrong shape or is out of range",
	CodeUnknownKey:              "a configuration key is not among the recognized top-level keys",
	CodeBadTemplate:             "a config template directive could not be expanded",
	CodePathResolution:          "a relative or ${BASE_DIR} path could not be resolved",
	CodeSchemeNotFound:          "an instruction is not representable in the current scheme universe",
	CodeOperandUnsupported:      "an operand kind is not supported by the current context",
	CodeFilterFileInvalid:       "a blacklist/whitelist filter file could not be read or parsed",
	CodeMalformedSerialization:  "a serialized abstract block's JSON structure does not match spec §6.1",
	CodeEmptyConcretization:     "an abstract instruction's concretization is empty",
	CodeAliasingOverconstrained: "the aliasing graph has no feasible coloring",
	CodeSampleRetriesExhausted:  "sampling exhausted its retry budget",
	CodeNonPositiveTP:           "a predictor returned a non-positive throughput value",
	CodePredictorTimeout:        "a predictor evaluation exceeded its wall-clock timeout",
	CodePredictorCrash:          "a predictor process crashed or returned malformed output",
	CodeNoSatisfiableTop:        "no satisfiable top-of-lattice block exists for any configured length",
	CodeCampaignAborted:         "the campaign ended prematurely due to unrecoverable state",
	CodeBatchBoundaryStop:       "a stop was requested and honored at the next batch boundary",
}

// Describe returns a human-readable description of an error code, or the
// empty string if the code is unknown.
func Describe(code string) string {
	return descriptions[code]
}
