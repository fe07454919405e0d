package prompt

import (
	"strings"

	"github.com/ierezell/ml-infra/relay/model"
)

const taskPrefix = "question:"

// StripTaskPrefix removes every leading "question:" the model echoes, ignoring
// case, and trims the surrounding whitespace.
func StripTaskPrefix(s string) string {
	out := strings.TrimSpace(s)
	for len(out) >= len(taskPrefix) && strings.EqualFold(out[:len(taskPrefix)], taskPrefix) {
		out = strings.TrimSpace(out[len(taskPrefix):])
	}
	return out
}

// Reassemble puts every contiguous block of numReturnSequences outputs into the
// bucket of the context whose prompt produced it, preserving generation order.
// Every context gets a non-nil bucket. A count mismatch is a job failure, never
// a partial result.
func Reassemble(outputs []string, mapping AnswerMapping, numContexts, numReturnSequences int) (model.GeneratedQuestions, error) {
	if numReturnSequences < 1 {
		return nil, model.NewError(model.KindInternal, "num_return_sequences must be positive, got %d", numReturnSequences)
	}
	if want := len(mapping) * numReturnSequences; len(outputs) != want {
		return nil, model.NewError(model.KindJobFailed,
			"model returned %d outputs, expected %d (%d prompts x %d sequences)",
			len(outputs), want, len(mapping), numReturnSequences)
	}

	results := make(model.GeneratedQuestions, numContexts)
	for i := range results {
		results[i] = []string{}
	}

	prev := 0
	for p, ctxIdx := range mapping {
		if ctxIdx < 0 || ctxIdx >= numContexts || ctxIdx < prev {
			return nil, model.NewError(model.KindInternal,
				"answer mapping entry %d (%d) is out of order or range for %d contexts", p, ctxIdx, numContexts)
		}
		prev = ctxIdx

		block := outputs[p*numReturnSequences : (p+1)*numReturnSequences]
		for _, out := range block {
			results[ctxIdx] = append(results[ctxIdx], StripTaskPrefix(out))
		}
	}

	return results, nil
}

// ReassembleLayout is Reassemble driven by a persisted Layout.
func ReassembleLayout(outputs []string, layout Layout) (model.GeneratedQuestions, error) {
	return Reassemble(outputs, layout.Mapping, layout.NumContexts, layout.NumReturnSequences)
}
