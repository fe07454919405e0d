package async

import (
	"context"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/ierezell/ml-infra/common/graceful"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, []string, model.DecodingConfig) ([]string, error) {
	return nil, errors.New("model crashed")
}

func newLoopbackPipeline(t *testing.T, gen Generator) (*Submitter, *Poller) {
	t.Helper()
	store := storage.NewMemoryStore()
	trigger := NewLoopbackTrigger(store, gen, "local-outputs", "qgen")
	sub, err := NewSubmitter(store, trigger, SubmitterConfig{Bucket: "local-inputs", Prefix: "qgen/inputs"})
	require.NoError(t, err)
	poller := NewPoller(store, PollerConfig{
		Backoff:  BackoffConfig{Initial: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2},
		Deadline: 5 * time.Second,
	}, nil)
	return sub, poller
}

func TestLoopbackRoundTrip(t *testing.T) {
	sub, poller := newLoopbackPipeline(t, EchoGenerator{})
	prompts := []string{"answer: CEO context: Sylvain is the CEO of Botpress.", "answer: Paris context: Paris is in France."}

	rec, err := sub.Submit(testCtx(), "req-loop", prompts, model.DefaultDecodingConfig())
	require.NoError(t, err)
	require.NotNil(t, rec.FailureHandle)

	require.NoError(t, poller.Wait(testCtx(), rec))
	require.Len(t, rec.Outputs, len(prompts)*4)
	require.Equal(t, "question: What is CEO? (1)", rec.Outputs[0])
	require.Equal(t, "question: What is Paris? (4)", rec.Outputs[7])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, graceful.Drain(ctx))
}

func TestLoopbackFailureReport(t *testing.T) {
	sub, poller := newLoopbackPipeline(t, failingGenerator{})

	rec, err := sub.Submit(testCtx(), "req-fail", []string{"answer: a context: c"}, model.DefaultDecodingConfig())
	require.NoError(t, err)

	err = poller.Wait(testCtx(), rec)
	require.Equal(t, model.KindJobFailed, asQuestionError(err).Kind)
	require.Contains(t, rec.Error, "model crashed")
}

func TestEchoGenerator(t *testing.T) {
	cfg := model.DefaultDecodingConfig()
	cfg.NumReturnSequences = 2
	out, err := EchoGenerator{}.Generate(context.Background(), []string{"answer: x context: y"}, cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"question: What is x? (1)", "question: What is x? (2)"}, out)

	cfg.NumReturnSequences = 0
	_, err = EchoGenerator{}.Generate(context.Background(), nil, cfg)
	require.Error(t, err)
}
