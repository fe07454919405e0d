package model

import (
	"encoding/json"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var qe *QuestionError
	require.True(t, errors.As(err, &qe), "expected *QuestionError, got %T", err)
	require.Equal(t, kind, qe.Kind)
}

func TestDecodeQuestionRequest(t *testing.T) {
	req, err := DecodeQuestionRequest([]byte(`{"answers":[["CEO"]],"contexts":["Sylvain is the CEO of Botpress."]}`))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"CEO"}}, req.Answers)
	require.Equal(t, []string{"Sylvain is the CEO of Botpress."}, req.Contexts)
	require.Nil(t, req.Parameters)
}

func TestDecodeQuestionRequestEmptyAnswerList(t *testing.T) {
	req, err := DecodeQuestionRequest([]byte(`{"answers":[[],["a","b"]],"contexts":["c0","c1"]}`))
	require.NoError(t, err)
	require.NotNil(t, req.Answers[0])
	require.Empty(t, req.Answers[0])
	require.Len(t, req.Answers[1], 2)
}

func TestDecodeQuestionRequestWithParameters(t *testing.T) {
	req, err := DecodeQuestionRequest([]byte(`{"answers":[["a"]],"contexts":["c"],"parameters":{"num_beams":8,"top_p":0.5}}`))
	require.NoError(t, err)
	require.NotNil(t, req.Parameters)
	require.Equal(t, 8, *req.Parameters.NumBeams)
	require.InDelta(t, 0.5, *req.Parameters.TopP, 1e-9)
	require.Nil(t, req.Parameters.MaxLength)
}

func TestDecodeQuestionRequestRejects(t *testing.T) {
	cases := map[string]string{
		"invalid json":          `{"answers":`,
		"unknown top-level key": `{"answers":[["a"]],"contexts":["c"],"answers_per_context":[]}`,
		"unknown parameter":     `{"answers":[["a"]],"contexts":["c"],"parameters":{"do_sample":true}}`,
		"missing answers":       `{"contexts":["c"]}`,
		"missing contexts":      `{"answers":[["a"]]}`,
		"null context":          `{"answers":[["a"]],"contexts":[null]}`,
		"null answer list":      `{"answers":[null],"contexts":["c"]}`,
		"null answer":           `{"answers":[[null]],"contexts":["c"]}`,
		"numeric answer":        `{"answers":[[1]],"contexts":["c"]}`,
		"numeric context":       `{"answers":[["a"]],"contexts":[42]}`,
		"wrong parameter type":  `{"answers":[["a"]],"contexts":["c"],"parameters":{"num_beams":"four"}}`,
		"trailing data":         `{"answers":[["a"]],"contexts":["c"]} {}`,
		"not an object":         `[1,2,3]`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeQuestionRequest([]byte(body))
			requireKind(t, err, KindMalformedInput)
		})
	}
}

func TestWorkDescriptorJSONShape(t *testing.T) {
	raw, err := json.Marshal(WorkDescriptor{Inputs: []string{"p"}, Parameters: DefaultDecodingConfig()})
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &top))
	require.Len(t, top, 2)
	require.JSONEq(t, `["p"]`, string(top["inputs"]))

	var params map[string]any
	require.NoError(t, json.Unmarshal(top["parameters"], &params))
	for _, key := range []string{
		"max_length", "min_length", "early_stopping", "num_beams", "temperature",
		"num_return_sequences", "top_k", "top_p", "repetition_penalty", "length_penalty",
	} {
		require.Contains(t, params, key)
	}
	require.Len(t, params, 10)
}

func TestGeneratedQuestionsCount(t *testing.T) {
	require.Equal(t, 3, GeneratedQuestions{{}, {"a", "b"}, {"c"}}.Count())
}
