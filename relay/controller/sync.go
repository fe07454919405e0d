package controller

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ierezell/ml-infra/monitor"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/prompt"
)

// GenerateSync runs req through the realtime generator. Prompts are sent in
// batches with bounded concurrency and regrouped in batch order.
func (s *QuestionService) GenerateSync(ctx context.Context, req *model.QuestionRequest) (*model.QuestionResponse, error) {
	if !s.SyncEnabled() {
		monitor.RecordSyncGeneration("unavailable")
		return nil, model.NewError(model.KindUnavailable, "realtime generation is not configured")
	}

	p, err := s.prepare(req)
	if err != nil {
		monitor.RecordSyncGeneration("malformed")
		return nil, err
	}

	outputs, err := s.generateBatches(ctx, p)
	if err != nil {
		monitor.RecordSyncGeneration("error")
		return nil, err
	}

	results, err := prompt.ReassembleLayout(outputs, p.layout)
	if err != nil {
		monitor.RecordSyncGeneration("error")
		return nil, model.WrapError(model.KindUpstream, err, "realtime endpoint returned an unexpected number of outputs")
	}

	monitor.RecordSyncGeneration("ok")
	return &model.QuestionResponse{Results: results}, nil
}

func (s *QuestionService) generateBatches(ctx context.Context, p *prepared) ([]string, error) {
	if len(p.prompts) == 0 {
		return nil, nil
	}

	batches := splitBatches(p.prompts, s.batchSize)
	perBatch := make([][]string, len(batches))
	nrs := p.cfg.NumReturnSequences

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			out, err := s.generator.Generate(gctx, batch, p.cfg)
			if err != nil {
				return err
			}
			if len(out) != len(batch)*nrs {
				return model.NewError(model.KindUpstream,
					"batch %d: expected %d outputs, got %d", i, len(batch)*nrs, len(out))
			}
			perBatch[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, model.WrapError(model.KindCanceled, ctx.Err(), "request canceled during generation")
		}
		gmw.GetLogger(ctx).Error("realtime generation failed",
			zap.Int("prompts", len(p.prompts)),
			zap.Int("batches", len(batches)),
			zap.Error(err))
		if qe := asKind(err, model.KindUpstream); qe != nil {
			return nil, qe
		}
		return nil, model.WrapError(model.KindUpstream, err, "realtime generation failed")
	}

	outputs := make([]string, 0, len(p.prompts)*nrs)
	for _, out := range perBatch {
		outputs = append(outputs, out...)
	}
	return outputs, nil
}

// asKind returns err as a QuestionError when it already is one of kind.
func asKind(err error, kind model.ErrorKind) *model.QuestionError {
	qe := model.AsQuestionError(err)
	if qe.Kind != kind {
		return nil
	}
	return qe
}

func splitBatches(prompts []string, size int) [][]string {
	batches := make([][]string, 0, (len(prompts)+size-1)/size)
	for start := 0; start < len(prompts); start += size {
		end := min(start+size, len(prompts))
		batches = append(batches, prompts[start:end])
	}
	return batches
}
