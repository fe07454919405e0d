// Package prompt turns question requests into model prompts and regroups the
// generated text per context.
package prompt

import (
	"fmt"

	"github.com/ierezell/ml-infra/relay/model"
)

// Template combines one answer with its context.
const Template = "answer: %s context: %s"

// PromptBatch is the ordered list of prompts sent to the model.
type PromptBatch []string

// AnswerMapping gives, for each prompt, the index of the context it came from.
type AnswerMapping []int

// Layout is what the reassembler needs to regroup outputs of a batch. It is
// persisted with async jobs so results can be regrouped after the request ends.
type Layout struct {
	Mapping            AnswerMapping `json:"mapping"`
	NumContexts        int           `json:"num_contexts"`
	NumReturnSequences int           `json:"num_return_sequences"`
}

// Build renders the prompt for one (answer, context) pair.
func Build(answer, context string) string {
	return fmt.Sprintf(Template, answer, context)
}

// Normalize flattens req into prompts in context order, answers in request order
// within each context. A context without answers contributes no prompt.
func Normalize(req *model.QuestionRequest) (PromptBatch, AnswerMapping, error) {
	if req == nil {
		return nil, nil, model.MalformedInput("request body is required")
	}
	if req.Answers == nil {
		return nil, nil, model.MalformedInput("answers is required")
	}
	if req.Contexts == nil {
		return nil, nil, model.MalformedInput("contexts is required")
	}
	if len(req.Answers) != len(req.Contexts) {
		return nil, nil, model.MalformedInput(
			"answers and contexts must have the same length, got %d and %d",
			len(req.Answers), len(req.Contexts))
	}

	total := 0
	for _, answers := range req.Answers {
		total += len(answers)
	}

	batch := make(PromptBatch, 0, total)
	mapping := make(AnswerMapping, 0, total)
	for i, context := range req.Contexts {
		for _, answer := range req.Answers[i] {
			batch = append(batch, Build(answer, context))
			mapping = append(mapping, i)
		}
	}

	return batch, mapping, nil
}
