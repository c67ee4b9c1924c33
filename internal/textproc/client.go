package textproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"cabview.railmap.org/internal/logging"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"

	maxResponseBytes = 1 << 20
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration

	// Consecutive failures after which the breaker opens.
	FailureThreshold uint32
	// How long the breaker stays open before probing again.
	OpenTimeout time.Duration

	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *slog.Logger
}

// Client converts text by asking a generateContent-style language model
// endpoint. Calls go through a circuit breaker so a failing upstream is
// not hammered by every submission.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[string]
	recorder Recorder
	logger   *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 2 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "textproc")

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "text-processor",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// Input problems are not upstream failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoCSV) || errors.Is(err, context.Canceled)
		},
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     cfg.HTTPClient,
		cb:       gobreaker.NewCircuitBreaker[string](settings),
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// State reports the breaker state, for diagnostics.
func (c *Client) State() string {
	return c.cb.State().String()
}

func (c *Client) Convert(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	out, err := c.cb.Execute(func() (string, error) {
		raw, err := c.generate(ctx, Prompt(text))
		if err != nil {
			return "", err
		}
		csv := CleanCSV(raw)
		if csv == "" {
			return "", ErrNoCSV
		}
		return csv, nil
	})

	switch {
	case err == nil:
		c.record("ok")
		return out, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.record("rejected")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, ErrNoCSV):
		c.record("error")
		return "", err
	default:
		c.record("error")
		logging.LogError(c.logger, "text conversion failed", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordTextProcessor(result)
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "text processor response")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	if len(decoded.Candidates) > 0 {
		for _, p := range decoded.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}
	return sb.String(), nil
}
