package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultDecodingConfigIsValid(t *testing.T) {
	cfg := DefaultDecodingConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4, cfg.NumReturnSequences)
	require.Equal(t, 4, cfg.NumBeams)
	require.Equal(t, 128, cfg.MaxLength)
	require.InDelta(t, 0.92, cfg.TopP, 1e-9)
}

func TestDecodingConfigValidateRanges(t *testing.T) {
	cases := map[string]func(*DecodingConfig){
		"max_length zero":             func(c *DecodingConfig) { c.MaxLength = 0 },
		"max_length too large":        func(c *DecodingConfig) { c.MaxLength = 4096 },
		"min_length above max_length": func(c *DecodingConfig) { c.MinLength = c.MaxLength + 1 },
		"negative min_length":         func(c *DecodingConfig) { c.MinLength = -1 },
		"zero beams":                  func(c *DecodingConfig) { c.NumBeams = 0 },
		"zero temperature":            func(c *DecodingConfig) { c.Temperature = 0 },
		"zero return sequences":       func(c *DecodingConfig) { c.NumReturnSequences = 0 },
		"more sequences than beams":   func(c *DecodingConfig) { c.NumReturnSequences = c.NumBeams + 1 },
		"negative top_k":              func(c *DecodingConfig) { c.TopK = -1 },
		"top_p above one":             func(c *DecodingConfig) { c.TopP = 1.5 },
		"top_p zero":                  func(c *DecodingConfig) { c.TopP = 0 },
		"non-positive repetition":     func(c *DecodingConfig) { c.RepetitionPenalty = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultDecodingConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDecodingConfigSamplingAllowsManySequences(t *testing.T) {
	cfg := DefaultDecodingConfig()
	cfg.NumBeams = 1
	cfg.NumReturnSequences = 10
	require.NoError(t, cfg.Validate())
}

func TestDecodingConfigMerge(t *testing.T) {
	base := DefaultDecodingConfig()
	require.Equal(t, base, base.Merge(nil))

	beams := 8
	seqs := 2
	early := false
	topP := 0.7
	merged := base.Merge(&DecodingOverrides{
		NumBeams:           &beams,
		NumReturnSequences: &seqs,
		EarlyStopping:      &early,
		TopP:               &topP,
	})

	require.Equal(t, 8, merged.NumBeams)
	require.Equal(t, 2, merged.NumReturnSequences)
	require.False(t, merged.EarlyStopping)
	require.InDelta(t, 0.7, merged.TopP, 1e-9)
	require.Equal(t, base.MaxLength, merged.MaxLength)
	require.Equal(t, base.RepetitionPenalty, merged.RepetitionPenalty)
	require.Equal(t, 4, base.NumBeams, "merge must not mutate the receiver")
}
