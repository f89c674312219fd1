package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

const contentTypeJSON = "application/json"

type endpointInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput,
		optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// SageMakerTransport invokes a SageMaker real-time endpoint.
type SageMakerTransport struct {
	api      endpointInvoker
	endpoint string
	timeout  time.Duration
}

// NewSageMakerTransport loads AWS credentials from the default chain
// (env, shared config, instance role) for the given region.
func NewSageMakerTransport(ctx context.Context, region, endpoint string, timeout time.Duration) (*SageMakerTransport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SageMakerTransport{
		api:      sagemakerruntime.NewFromConfig(cfg),
		endpoint: endpoint,
		timeout:  timeout,
	}, nil
}

func (t *SageMakerTransport) Name() string { return "sagemaker:" + t.endpoint }

func (t *SageMakerTransport) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	out, err := t.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(t.endpoint),
		ContentType:  aws.String(contentTypeJSON),
		Accept:       aws.String(contentTypeJSON),
		Body:         payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke endpoint %s: %w", t.endpoint, err)
	}
	return out.Body, nil
}
