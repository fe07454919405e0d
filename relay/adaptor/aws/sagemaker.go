package aws

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/ierezell/ml-infra/relay/async"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

const (
	contentTypeJSON = "application/json"
	// minRequestTTLSeconds and maxRequestTTLSeconds bound RequestTTLSeconds on async invocations.
	minRequestTTLSeconds = 60
	maxRequestTTLSeconds = 21600
)

// SageMakerAPI is the subset of *sagemakerruntime.Client used here.
type SageMakerAPI interface {
	InvokeEndpointAsync(ctx context.Context, params *sagemakerruntime.InvokeEndpointAsyncInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointAsyncOutput, error)
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// NewSageMakerClient creates the runtime client from cfg.
func NewSageMakerClient(cfg aws.Config) *sagemakerruntime.Client {
	return sagemakerruntime.NewFromConfig(cfg)
}

var _ async.Trigger = (*AsyncInvoker)(nil)

// AsyncInvoker triggers InvokeEndpointAsync against a work descriptor in S3.
type AsyncInvoker struct {
	client       SageMakerAPI
	endpointName string
	ttlSeconds   int32
}

// NewAsyncInvoker returns a trigger for endpointName. The queued request
// expires after requestTTL, clamped to what SageMaker accepts.
func NewAsyncInvoker(client SageMakerAPI, endpointName string, requestTTLSeconds int) (*AsyncInvoker, error) {
	if endpointName == "" {
		return nil, errors.New("sagemaker endpoint name is empty")
	}
	ttl := min(max(requestTTLSeconds, minRequestTTLSeconds), maxRequestTTLSeconds)

	return &AsyncInvoker{client: client, endpointName: endpointName, ttlSeconds: int32(ttl)}, nil
}

func (a *AsyncInvoker) Invoke(ctx context.Context, input storage.Location, inferenceID string) (*async.Invocation, error) {
	out, err := a.client.InvokeEndpointAsync(ctx, &sagemakerruntime.InvokeEndpointAsyncInput{
		EndpointName:      aws.String(a.endpointName),
		InputLocation:     aws.String(input.String()),
		ContentType:       aws.String(contentTypeJSON),
		Accept:            aws.String(contentTypeJSON),
		InferenceId:       aws.String(inferenceID),
		RequestTTLSeconds: aws.Int32(a.ttlSeconds),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invoke endpoint %s async", a.endpointName)
	}

	inv := &async.Invocation{
		OutputLocation:  aws.ToString(out.OutputLocation),
		FailureLocation: aws.ToString(out.FailureLocation),
		InferenceID:     aws.ToString(out.InferenceId),
	}
	gmw.GetLogger(ctx).Debug("sagemaker async invocation accepted",
		zap.String("endpoint", a.endpointName),
		zap.String("inference_id", inv.InferenceID),
		zap.String("output_location", inv.OutputLocation))
	return inv, nil
}

var _ async.Generator = (*RealtimeGenerator)(nil)

// RealtimeGenerator calls InvokeEndpoint synchronously with a work descriptor body.
type RealtimeGenerator struct {
	client       SageMakerAPI
	endpointName string
}

func NewRealtimeGenerator(client SageMakerAPI, endpointName string) (*RealtimeGenerator, error) {
	if endpointName == "" {
		return nil, errors.New("sagemaker realtime endpoint name is empty")
	}
	return &RealtimeGenerator{client: client, endpointName: endpointName}, nil
}

func (g *RealtimeGenerator) Generate(ctx context.Context, prompts []string, cfg model.DecodingConfig) ([]string, error) {
	body, err := json.Marshal(model.WorkDescriptor{Inputs: prompts, Parameters: cfg})
	if err != nil {
		return nil, errors.Wrap(err, "encode generation request")
	}

	out, err := g.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(g.endpointName),
		Body:         body,
		ContentType:  aws.String(contentTypeJSON),
		Accept:       aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invoke endpoint %s", g.endpointName)
	}

	outputs, err := decodeGeneratedText(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode response of endpoint %s", g.endpointName)
	}
	if want := len(prompts) * cfg.NumReturnSequences; len(outputs) != want {
		return nil, errors.Errorf("endpoint %s returned %d outputs, expected %d", g.endpointName, len(outputs), want)
	}
	return outputs, nil
}

// decodeGeneratedText accepts a plain string array or the
// [{"generated_text": "..."}] shape of text-generation containers.
func decodeGeneratedText(body []byte) ([]string, error) {
	var plain []string
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain, nil
	}

	var objects []struct {
		GeneratedText *string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, errors.Wrap(err, "response is neither a string array nor generated_text objects")
	}

	outputs := make([]string, len(objects))
	for i, o := range objects {
		if o.GeneratedText == nil {
			return nil, errors.Errorf("response[%d] has no generated_text", i)
		}
		outputs[i] = *o.GeneratedText
	}
	return outputs, nil
}
