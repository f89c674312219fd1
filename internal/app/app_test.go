package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CloseForecaster/internal/collector"
	"CloseForecaster/internal/config"
	"CloseForecaster/internal/notifier"
	"CloseForecaster/internal/scheduler"
)

func httpConfig(t *testing.T, dataURL, modelURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.DataSource.Provider = "rest"
	cfg.DataSource.BaseURL = dataURL
	cfg.DataSource.Symbol = "ITUB4.SA"
	cfg.DataSource.LookbackDays = 90
	cfg.DataSource.Timeout = 5 * time.Second
	cfg.Model.SequenceLength = 3
	cfg.Model.Horizon = 2
	cfg.Inference.Backend = "http"
	cfg.Inference.URL = modelURL
	cfg.Inference.ResponseSchema = "list.v1"
	cfg.Inference.Timeout = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewFetcher(t *testing.T) {
	cfg := &config.Config{}
	cfg.DataSource.Provider = "yahoo"
	f, err := NewFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &collector.YahooFetcher{}, f)

	cfg.DataSource.Provider = "rest"
	cfg.DataSource.BaseURL = "http://bars.local"
	f, err = NewFetcher(cfg)
	require.NoError(t, err)
	assert.Equal(t, "rest", f.Name())

	cfg.DataSource.Provider = "csv"
	_, err = NewFetcher(cfg)
	assert.Error(t, err)
}

func TestNewInferenceClient_UnknownSchema(t *testing.T) {
	cfg := httpConfig(t, "http://bars.local", "http://model.local")
	cfg.Inference.ResponseSchema = "object.v2"
	_, err := NewInferenceClient(context.Background(), cfg)
	assert.Error(t, err)
}

func newBarsServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		now := time.Now().Unix()
		_, _ = w.Write([]byte(`[
			{"timestamp": ` + itoa(now-4*86400) + `, "close": 10},
			{"timestamp": ` + itoa(now-3*86400) + `, "close": 11},
			{"timestamp": ` + itoa(now-2*86400) + `, "close": 12},
			{"timestamp": ` + itoa(now-86400) + `, "close": 13}
		]`))
	}))
}

func TestPipeline_EndToEnd(t *testing.T) {
	bars := newBarsServer()
	defer bars.Close()

	var windows [][]float64
	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Instances [][]float64 `json:"instances"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		windows = append(windows, body.Instances[0])
		_, _ = w.Write([]byte(`[{"predicted_price": 20}]`))
	}))
	defer modelSrv.Close()

	a, err := New(context.Background(), httpConfig(t, bars.URL, modelSrv.URL))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fechamento/proximos", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"previsoes_proximos_2_dias": [{"predicted_price": 20}, {"predicted_price": 20}]}`, rec.Body.String())
	assert.Equal(t, [][]float64{{10, 11, 12}, {11, 12, 20}}, windows)

	assert.Error(t, a.RunDigestNow(context.Background()), "digest is off without telegram settings")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), httpConfig(t, "http://bars.local", "http://model.local"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type chanSender struct{ texts chan string }

func (c chanSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.texts <- text
	return nil
}

type idlePoller struct{}

func (idlePoller) StartPolling(ctx context.Context, _ notifier.CommandHandler) { <-ctx.Done() }

func TestRun_DigestOnStart(t *testing.T) {
	bars := newBarsServer()
	defer bars.Close()
	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"predicted_price": 20}]`))
	}))
	defer modelSrv.Close()

	a, err := New(context.Background(), httpConfig(t, bars.URL, modelSrv.URL))
	require.NoError(t, err)
	sender := chanSender{texts: make(chan string, 1)}
	a.scheduler = scheduler.NewScheduler(context.Background(), a.Forecaster, sender, "ITUB4.SA", 2)
	a.notifier = idlePoller{}
	a.DigestOnStart = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case text := <-sender.texts:
		assert.Contains(t, text, "D+2: 20.00")
	case <-time.After(10 * time.Second):
		t.Fatal("no digest sent on start")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
