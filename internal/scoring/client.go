package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"cv-ranker/internal/shared/metrics"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 1 << 20

var (
	// ErrTimeout is returned when the oracle does not answer in time.
	ErrTimeout = errors.New("scoring oracle timed out")
	// ErrMalformedResponse is returned for bodies that do not match the contract.
	ErrMalformedResponse = errors.New("malformed scoring oracle response")
	// ErrNotConfigured is returned by Unconfigured.
	ErrNotConfigured = errors.New("scoring oracle is not configured")
)

// OracleError reports a non-2xx oracle response.
type OracleError struct {
	StatusCode int
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("scoring oracle returned status %d", e.StatusCode)
}

// Scorer scores one candidate against a job description.
type Scorer interface {
	Score(ctx context.Context, jdText, candidateText string) (Prediction, error)
}

// Client calls the remote relevance oracle over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a Client. A non-positive timeout uses DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("ORACLE_URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type scoreRequest struct {
	JD     string `json:"jd"`
	Resume string `json:"resume"`
}

type scoreResponse struct {
	Result *struct {
		Prediction string   `json:"prediction"`
		Confidence *float64 `json:"confidence"`
	} `json:"result"`
}

// Score posts {jd, resume} and parses {result: {prediction, confidence}}.
func (c *Client) Score(ctx context.Context, jdText, candidateText string) (Prediction, error) {
	p, err := c.score(ctx, jdText, candidateText)
	metrics.IncOracleCall(outcome(err))
	return p, err
}

func (c *Client) score(ctx context.Context, jdText, candidateText string) (Prediction, error) {
	payload, err := json.Marshal(scoreRequest{JD: jdText, Resume: candidateText})
	if err != nil {
		return Prediction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Prediction{}, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return Prediction{}, fmt.Errorf("scoring oracle request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return Prediction{}, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return Prediction{}, fmt.Errorf("scoring oracle read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Prediction{}, &OracleError{StatusCode: resp.StatusCode}
	}
	return parsePrediction(body)
}

func parsePrediction(body []byte) (Prediction, error) {
	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if parsed.Result == nil || parsed.Result.Confidence == nil {
		return Prediction{}, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}
	verdict := Verdict(parsed.Result.Prediction)
	if verdict != VerdictRelevant && verdict != VerdictNotRelevant {
		return Prediction{}, fmt.Errorf("%w: unknown prediction %q", ErrMalformedResponse, parsed.Result.Prediction)
	}
	conf := *parsed.Result.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 100 {
		return Prediction{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, conf)
	}
	return Prediction{Verdict: verdict, Confidence: math.Round(conf*100) / 100}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	var oe *OracleError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &oe):
		return "http_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}

// Unconfigured fails every call. It stands in when no oracle URL is set.
type Unconfigured struct{}

func (Unconfigured) Score(ctx context.Context, jdText, candidateText string) (Prediction, error) {
	return Prediction{}, ErrNotConfigured
}

var _ Scorer = (*Client)(nil)
