package model

import (
	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodingConfig holds the generation hyperparameters forwarded to the model.
type DecodingConfig struct {
	MaxLength          int     `json:"max_length" validate:"min=1,max=2048"`
	MinLength          int     `json:"min_length" validate:"min=0,ltefield=MaxLength"`
	EarlyStopping      bool    `json:"early_stopping"`
	NumBeams           int     `json:"num_beams" validate:"min=1,max=64"`
	Temperature        float64 `json:"temperature" validate:"gt=0,lte=10"`
	NumReturnSequences int     `json:"num_return_sequences" validate:"min=1,max=64"`
	TopK               int     `json:"top_k" validate:"min=0"`
	TopP               float64 `json:"top_p" validate:"gt=0,lte=1"`
	RepetitionPenalty  float64 `json:"repetition_penalty" validate:"gt=0"`
	LengthPenalty      float64 `json:"length_penalty"`
}

// DefaultDecodingConfig returns the parameters the async endpoint has always used.
func DefaultDecodingConfig() DecodingConfig {
	return DecodingConfig{
		MaxLength:          128,
		MinLength:          2,
		EarlyStopping:      true,
		NumBeams:           4,
		Temperature:        1.0,
		NumReturnSequences: 4,
		TopK:               0,
		TopP:               0.92,
		RepetitionPenalty:  2.0,
		LengthPenalty:      1.0,
	}
}

// Validate checks field ranges. With beam search, a beam cannot return more
// sequences than there are beams.
func (c DecodingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid decoding parameters")
	}
	if c.NumBeams > 1 && c.NumReturnSequences > c.NumBeams {
		return errors.Errorf("num_return_sequences (%d) must not exceed num_beams (%d)",
			c.NumReturnSequences, c.NumBeams)
	}
	return nil
}

// DecodingOverrides is a partial DecodingConfig supplied by the client.
type DecodingOverrides struct {
	MaxLength          *int     `json:"max_length,omitempty"`
	MinLength          *int     `json:"min_length,omitempty"`
	EarlyStopping      *bool    `json:"early_stopping,omitempty"`
	NumBeams           *int     `json:"num_beams,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	NumReturnSequences *int     `json:"num_return_sequences,omitempty"`
	TopK               *int     `json:"top_k,omitempty"`
	TopP               *float64 `json:"top_p,omitempty"`
	RepetitionPenalty  *float64 `json:"repetition_penalty,omitempty"`
	LengthPenalty      *float64 `json:"length_penalty,omitempty"`
}

// Merge applies the non-nil fields of o on top of c.
func (c DecodingConfig) Merge(o *DecodingOverrides) DecodingConfig {
	if o == nil {
		return c
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&c.MaxLength, o.MaxLength)
	setInt(&c.MinLength, o.MinLength)
	setInt(&c.NumBeams, o.NumBeams)
	setInt(&c.NumReturnSequences, o.NumReturnSequences)
	setInt(&c.TopK, o.TopK)
	setFloat(&c.Temperature, o.Temperature)
	setFloat(&c.TopP, o.TopP)
	setFloat(&c.RepetitionPenalty, o.RepetitionPenalty)
	setFloat(&c.LengthPenalty, o.LengthPenalty)
	if o.EarlyStopping != nil {
		c.EarlyStopping = *o.EarlyStopping
	}

	return c
}
