package async

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/common/graceful"
	"github.com/ierezell/ml-infra/common/random"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

// Generator turns prompts into num_return_sequences outputs per prompt, flat and in prompt order.
type Generator interface {
	Generate(ctx context.Context, prompts []string, cfg model.DecodingConfig) ([]string, error)
}

// LoopbackTrigger runs generation in-process and writes the output or failure
// object the way the managed async endpoint does. It backs STORE_BACKEND=memory.
type LoopbackTrigger struct {
	store     storage.ObjectStore
	generator Generator
	bucket    string
	prefix    string
}

// NewLoopbackTrigger writes results under {prefix}/output and {prefix}/failure in bucket.
func NewLoopbackTrigger(store storage.ObjectStore, generator Generator, bucket, prefix string) *LoopbackTrigger {
	return &LoopbackTrigger{
		store:     store,
		generator: generator,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
	}
}

func (t *LoopbackTrigger) Invoke(ctx context.Context, input storage.Location, inferenceID string) (*Invocation, error) {
	if err := input.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid input location")
	}

	id := random.GetUUID()
	output := storage.Location{Bucket: t.bucket, Key: path.Join(t.prefix, "output", id+".out")}
	failure := storage.Location{Bucket: t.bucket, Key: path.Join(t.prefix, "failure", id+"-error.out")}

	bg := gmw.SetLogger(context.WithoutCancel(ctx), gmw.GetLogger(ctx).With(zap.String("inference_id", inferenceID)))
	graceful.GoCritical(bg, "loopback-generation", func(ctx context.Context) {
		t.run(ctx, input, output, failure)
	})

	return &Invocation{
		OutputLocation:  output.String(),
		FailureLocation: failure.String(),
		InferenceID:     inferenceID,
	}, nil
}

func (t *LoopbackTrigger) run(ctx context.Context, input, output, failure storage.Location) {
	lg := gmw.GetLogger(ctx)

	outputs, err := t.generate(ctx, input)
	if err != nil {
		lg.Warn("loopback generation failed", zap.Error(err))
		if perr := t.store.Put(ctx, failure, []byte(err.Error())); perr != nil {
			lg.Error("failed to write failure report", zap.Error(perr))
		}
		return
	}

	body, err := json.Marshal(outputs)
	if err != nil {
		lg.Error("failed to encode outputs", zap.Error(err))
		return
	}
	if err := t.store.Put(ctx, output, body); err != nil {
		lg.Error("failed to write outputs", zap.Error(err))
	}
}

func (t *LoopbackTrigger) generate(ctx context.Context, input storage.Location) ([]string, error) {
	body, err := t.store.Get(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "read work descriptor")
	}

	var desc model.WorkDescriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, errors.Wrap(err, "decode work descriptor")
	}

	outputs, err := t.generator.Generate(ctx, desc.Inputs, desc.Parameters)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}
	return outputs, nil
}

// EchoGenerator is a deterministic stand-in for the model: it turns every
// prompt into num_return_sequences questions about its answer.
type EchoGenerator struct{}

func (EchoGenerator) Generate(ctx context.Context, prompts []string, cfg model.DecodingConfig) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if cfg.NumReturnSequences < 1 {
		return nil, errors.Errorf("num_return_sequences must be positive, got %d", cfg.NumReturnSequences)
	}

	outputs := make([]string, 0, len(prompts)*cfg.NumReturnSequences)
	for _, p := range prompts {
		answer := strings.TrimPrefix(p, "answer: ")
		if idx := strings.Index(answer, " context: "); idx >= 0 {
			answer = answer[:idx]
		}
		for i := range cfg.NumReturnSequences {
			outputs = append(outputs, fmt.Sprintf("question: What is %s? (%d)", answer, i+1))
		}
	}
	return outputs, nil
}
