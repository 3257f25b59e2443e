package anicaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterFormatsFatalConfigError(t *testing.T) {
	err := Config(CodeMissingOption, "missing required key 'discovery.discovery_batch_size'").
		At("campaign.json", 12, 3).
		WithNote("see §6.2 for the recognized top-level keys").
		Build()

	formatted := NewReporter(nil).Format(err)

	assert.Contains(t, formatted, "ConfigError["+CodeMissingOption+"]")
	assert.Contains(t, formatted, "campaign.json:12:3")
	assert.Contains(t, formatted, "see §6.2")
	assert.False(t, err.Recoverable())
}

func TestRecoverableKindsMatchSpec(t *testing.T) {
	assert.True(t, KindSampling.Recoverable())
	assert.True(t, KindPredictor.Recoverable())
	assert.False(t, KindConfig.Recoverable())
	assert.False(t, KindIWHO.Recoverable())
	assert.False(t, KindDiscovery.Recoverable())
	assert.False(t, KindUserAbort.Recoverable())
}

func TestAsUnwrapsWrappedCause(t *testing.T) {
	inner := Sampling(CodeEmptyConcretization, "empty concretization at position 0").Build()
	wrapped := Discovery(CodeCampaignAborted, "campaign aborted").WithCause(inner).Build()

	found, ok := As(wrapped, KindSampling)
	assert.True(t, ok)
	assert.Equal(t, inner, found)

	_, ok = As(errors.New("plain error"), KindConfig)
	assert.False(t, ok)
}
