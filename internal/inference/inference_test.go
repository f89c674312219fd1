package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CloseForecaster/internal/model"
)

func window(n int, v float64) model.PriceWindow {
	w := make(model.PriceWindow, n)
	for i := range w {
		w[i] = v
	}
	return w
}

func TestEncodePayload(t *testing.T) {
	body, err := EncodePayload(model.PriceWindow{1.5, 2, 3.25})
	require.NoError(t, err)
	assert.JSONEq(t, `{"instances":[[1.5,2,3.25]]}`, string(body))
}

func TestSchemas(t *testing.T) {
	assert.Equal(t, []string{SchemaListV1, SchemaObjectV1}, Schemas())

	_, err := NewDecoder("object.v9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object.v1")
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		body   string
		want   float64
		ok     bool
	}{
		{"object", SchemaObjectV1, `{"predicted_price": 31.42}`, 31.42, true},
		{"object with extra fields", SchemaObjectV1, `{"predicted_price": 30, "model": "lstm"}`, 30, true},
		{"object missing field", SchemaObjectV1, `{"price": 30}`, 0, false},
		{"object non-numeric", SchemaObjectV1, `{"predicted_price": "30"}`, 0, false},
		{"object given a list", SchemaObjectV1, `[{"predicted_price": 30}]`, 0, false},
		{"list", SchemaListV1, `[{"predicted_price": 29.9}, {"predicted_price": 1}]`, 29.9, true},
		{"list first element only", SchemaListV1, `[{"predicted_price": 29.9}, "ignored"]`, 29.9, true},
		{"empty list", SchemaListV1, `[]`, 0, false},
		{"list given an object", SchemaListV1, `{"predicted_price": 30}`, 0, false},
		{"malformed", SchemaObjectV1, `{"predicted_price":`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDecoder(tt.schema)
			require.NoError(t, err)
			pred, err := d.Decode([]byte(tt.body))
			if !tt.ok {
				assert.ErrorIs(t, err, model.ErrInferenceFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.PredictedPrice)
		})
	}
}

type fakeTransport struct {
	responses [][]byte
	errs      []error
	calls     int
	payloads  [][]byte
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Invoke(_ context.Context, payload []byte) ([]byte, error) {
	i := f.calls
	f.calls++
	f.payloads = append(f.payloads, payload)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[len(f.responses)-1], nil
}

func newTestClient(t *testing.T, tr Transport, n int) *EndpointClient {
	t.Helper()
	d, err := NewDecoder(SchemaObjectV1)
	require.NoError(t, err)
	c := NewEndpointClient(tr, d, n)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestEndpointClient_Predict(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{[]byte(`{"predicted_price": 30.0}`)}}
	c := newTestClient(t, tr, 3)

	pred, err := c.Predict(context.Background(), model.PriceWindow{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 30.0, pred.PredictedPrice)
	assert.Equal(t, 1, tr.calls)
	assert.JSONEq(t, `{"instances":[[1,2,3]]}`, string(tr.payloads[0]))
	assert.Equal(t, "fake", c.Name())
}

func TestEndpointClient_WrongWindowLength(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{[]byte(`{"predicted_price": 30.0}`)}}
	c := newTestClient(t, tr, 60)

	_, err := c.Predict(context.Background(), window(59, 1))
	assert.ErrorIs(t, err, model.ErrInferenceFailure)
	assert.Zero(t, tr.calls, "nothing is sent for a bad window")
}

func TestEndpointClient_TransportError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	tr := &fakeTransport{errs: []error{boom}, responses: [][]byte{nil}}
	c := newTestClient(t, tr, 1)

	_, err := c.Predict(context.Background(), model.PriceWindow{1})
	assert.ErrorIs(t, err, model.ErrInferenceFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tr.calls)
}

func TestEndpointClient_Retries(t *testing.T) {
	tr := &fakeTransport{
		errs:      []error{errors.New("throttled"), errors.New("throttled")},
		responses: [][]byte{[]byte(`{"predicted_price": 12.5}`)},
	}
	c := newTestClient(t, tr, 1)
	c.Retries = 2

	pred, err := c.Predict(context.Background(), model.PriceWindow{1})
	require.NoError(t, err)
	assert.Equal(t, 12.5, pred.PredictedPrice)
	assert.Equal(t, 3, tr.calls)
}

func TestEndpointClient_SchemaViolation(t *testing.T) {
	tr := &fakeTransport{responses: [][]byte{[]byte(`{"prediction": 30}`)}}
	_, err := newTestClient(t, tr, 1).Predict(context.Background(), model.PriceWindow{1})
	assert.ErrorIs(t, err, model.ErrInferenceFailure)
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Len(t, got.Instances, 1)
		assert.Len(t, got.Instances[0], 3)
		_, _ = w.Write([]byte(`{"predicted_price": 33.3}`))
	}))
	defer srv.Close()

	c := newTestClient(t, NewHTTPTransport(srv.URL+"/predict", "", 5*time.Second), 3)
	pred, err := c.Predict(context.Background(), model.PriceWindow{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 33.3, pred.PredictedPrice)
}

func TestHTTPTransport_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"predicted_price": 1}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "", time.Second).Invoke(context.Background(), []byte(`{}`))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}

type stubInvoker struct {
	in  *sagemakerruntime.InvokeEndpointInput
	out []byte
	err error
}

func (s *stubInvoker) InvokeEndpoint(_ context.Context, in *sagemakerruntime.InvokeEndpointInput,
	_ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	s.in = in
	if s.err != nil {
		return nil, s.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: s.out}, nil
}

func TestSageMakerTransport_Invoke(t *testing.T) {
	stub := &stubInvoker{out: []byte(`{"predicted_price": 31}`)}
	tr := &SageMakerTransport{api: stub, endpoint: "tensorflow-inference", timeout: time.Second}

	body, err := tr.Invoke(context.Background(), []byte(`{"instances":[[1]]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"predicted_price": 31}`, string(body))
	assert.Equal(t, "tensorflow-inference", *stub.in.EndpointName)
	assert.Equal(t, "application/json", *stub.in.ContentType)
	assert.Equal(t, "application/json", *stub.in.Accept)
	assert.Equal(t, `{"instances":[[1]]}`, string(stub.in.Body))
	assert.Equal(t, "sagemaker:tensorflow-inference", tr.Name())
}

func TestSageMakerTransport_Error(t *testing.T) {
	stub := &stubInvoker{err: errors.New("ModelError: received server error (500)")}
	c := newTestClient(t, &SageMakerTransport{api: stub, endpoint: "ep"}, 1)

	_, err := c.Predict(context.Background(), model.PriceWindow{1})
	assert.ErrorIs(t, err, model.ErrInferenceFailure)
	assert.Contains(t, err.Error(), "ModelError")
}
