package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/lifepulse/internal/model"
	"github.com/jwalitptl/lifepulse/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/lifepulse/pkg/errors"
	"github.com/jwalitptl/lifepulse/pkg/logger"
)

var ErrRejected = errors.New("remote service rejected request")

const HeaderIdempotencyKey = "Idempotency-Key"

type HTTPConfig struct {
	Endpoint string
	Timeout  time.Duration
	// RateLimit caps submissions per second during a reconnect burst.
	RateLimit float64
	Burst     int
}

// HTTPSubmitter posts emergency requests as JSON. The request id travels as
// the idempotency key so a retry after an ambiguous failure is not counted
// twice by the server.
type HTTPSubmitter struct {
	config  HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewHTTPSubmitter(config HTTPConfig, client *http.Client, log *logger.Logger) *HTTPSubmitter {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	if client == nil {
		client = &http.Client{}
	}

	settings := circuitbreaker.DefaultSettings("remote-submit")
	settings.OnStateChange = func(name, from, to string) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	}

	return &HTTPSubmitter{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, config.Burst),
		cb:      circuitbreaker.NewCircuitBreaker(settings),
		logger:  log,
	}
}

type submission struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	model.EmergencyRequestDraft
}

func (s *HTTPSubmitter) Submit(ctx context.Context, req *model.EmergencyRequest) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return apperrors.NewSubmission(req.ID, err)
	}

	body, err := json.Marshal(submission{
		ID:                    req.ID,
		CreatedAt:             req.CreatedAt,
		EmergencyRequestDraft: req.Draft(),
	})
	if err != nil {
		return apperrors.NewSubmission(req.ID, err)
	}

	err = s.cb.Execute(func() error {
		return s.post(ctx, req.ID, body)
	})
	if err != nil {
		return apperrors.NewSubmission(req.ID, err)
	}

	s.logger.Debug("Emergency request delivered", "request_id", req.ID)
	return nil
}

func (s *HTTPSubmitter) post(ctx context.Context, id string, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderIdempotencyKey, id)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
