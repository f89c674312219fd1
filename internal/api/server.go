package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/model"
)

//go:embed templates/home.html
var templateFS embed.FS

// Forecaster is what the routes need from the forecast layer.
type Forecaster interface {
	Today(ctx context.Context) (model.Prediction, error)
	Next(ctx context.Context, h int) (model.ForecastSequence, error)
}

// PageInfo fills the home page.
type PageInfo struct {
	Symbol         string
	Backend        string
	Region         string
	SequenceLength int
	Horizon        int
}

// Ticker is the symbol without its exchange suffix (ITUB4.SA -> ITUB4).
func (p PageInfo) Ticker() string {
	t, _, _ := strings.Cut(p.Symbol, ".")
	return t
}

type Options struct {
	Addr    string
	Horizon int
	// LegacyStatus answers every forecast error with 200, as the first
	// version of the service did.
	LegacyStatus bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Page         PageInfo
}

// Server exposes the forecast routes over HTTP.
type Server struct {
	opts       Options
	forecaster Forecaster
	router     *gin.Engine
	homeHTML   []byte
	log        zerolog.Logger
}

func NewServer(f Forecaster, opts Options) (*Server, error) {
	if f == nil {
		return nil, errors.New("forecaster is required")
	}
	if opts.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", opts.Horizon)
	}
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	opts.Page.Horizon = opts.Horizon

	home, err := renderHome(opts.Page)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	s := &Server{
		opts:       opts,
		forecaster: f,
		router:     router,
		homeHTML:   home,
		log:        logger.Component("api"),
	}
	router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s, nil
}

func renderHome(p PageInfo) ([]byte, error) {
	tpl, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse home template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render home template: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleHome)
	s.router.GET("/healthz", s.handleHealth)
	fechamento := s.router.Group("/fechamento")
	fechamento.GET("/hoje", s.handleToday)
	fechamento.GET("/proximos", s.handleNext)
}

// Handler returns the underlying http.Handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHome(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.homeHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleToday(c *gin.Context) {
	pred, err := s.forecaster.Today(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"previsao_hoje": pred})
}

func (s *Server) handleNext(c *gin.Context) {
	seq, err := s.forecaster.Next(c.Request.Context(), s.opts.Horizon)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{HorizonKey(s.opts.Horizon): seq})
}

// HorizonKey is the JSON key of the multi-day response.
func HorizonKey(h int) string {
	return fmt.Sprintf("previsoes_proximos_%d_dias", h)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	s.log.Error().Err(err).Int("status", status).Str("path", c.FullPath()).Msg("forecast failed")
	if s.opts.LegacyStatus {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"erro": err.Error()})
}

// StatusFor maps a forecast error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrDataUnavailable),
		errors.Is(err, model.ErrInferenceFailure),
		errors.Is(err, model.ErrWindowUpdate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info().Str("addr", s.opts.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
		s.log.Info().Msg("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := s.log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
