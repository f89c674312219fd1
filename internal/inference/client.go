package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/model"
)

// Client produces a single prediction from an input window.
type Client interface {
	Predict(ctx context.Context, window model.PriceWindow) (model.Prediction, error)
	Name() string
}

// Transport sends an encoded payload to a hosted model and returns the raw response body.
type Transport interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
	Name() string
}

// StatusError is returned by transports when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

type payload struct {
	Instances [][]float64 `json:"instances"`
}

// EncodePayload builds the {"instances": [[...]]} request body.
func EncodePayload(window model.PriceWindow) ([]byte, error) {
	return json.Marshal(payload{Instances: [][]float64{window}})
}

// EndpointClient is the Client used in production: it checks the window,
// encodes it, calls the transport and decodes the answer against a pinned schema.
type EndpointClient struct {
	transport Transport
	decoder   *Decoder
	windowLen int
	// Retries bounds extra attempts on transport errors. Zero means a single attempt.
	Retries int

	newBackOff func() backoff.BackOff
	log        zerolog.Logger
}

// NewEndpointClient creates a client that only accepts windows of windowLen prices.
func NewEndpointClient(t Transport, d *Decoder, windowLen int) *EndpointClient {
	return &EndpointClient{
		transport: t,
		decoder:   d,
		windowLen: windowLen,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
		log: logger.Component("inference"),
	}
}

func (c *EndpointClient) Name() string { return c.transport.Name() }

func (c *EndpointClient) Predict(ctx context.Context, window model.PriceWindow) (model.Prediction, error) {
	if len(window) != c.windowLen {
		return model.Prediction{}, fmt.Errorf("%w: window has %d prices, endpoint expects %d",
			model.ErrInferenceFailure, len(window), c.windowLen)
	}
	body, err := EncodePayload(window)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("%w: encode payload: %w", model.ErrInferenceFailure, err)
	}

	var raw []byte
	invoke := func() error {
		var err error
		raw, err = c.transport.Invoke(ctx, body)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.Retries)), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Str("backend", c.transport.Name()).Msg("invoke endpoint failed")
	}
	start := time.Now()
	if err := backoff.RetryNotify(invoke, policy, notify); err != nil {
		return model.Prediction{}, fmt.Errorf("%w: %s: %w", model.ErrInferenceFailure, c.transport.Name(), err)
	}

	pred, err := c.decoder.Decode(raw)
	if err != nil {
		return model.Prediction{}, err
	}
	c.log.Debug().
		Float64("predicted_price", pred.PredictedPrice).
		Dur("took", time.Since(start)).
		Msg("prediction received")
	return pred, nil
}
