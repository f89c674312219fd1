package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPTransport posts the payload to a JSON inference endpoint, such as a
// TensorFlow Serving predict URL or a self-hosted model server.
type HTTPTransport struct {
	client *resty.Client
	url    string
}

func NewHTTPTransport(url, proxyURL string, timeout time.Duration) *HTTPTransport {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", contentTypeJSON)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &HTTPTransport{client: client, url: url}
}

func (t *HTTPTransport) Name() string { return "http" }

func (t *HTTPTransport) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentTypeJSON).
		SetBody(payload).
		Post(t.url)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", t.url, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{StatusCode: code, Body: resp.String()}
	}
	return resp.Body(), nil
}
