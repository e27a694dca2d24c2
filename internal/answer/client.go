// Package answer calls the external question-answering backend.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ecochat/internal/models"
)

// Distinct failure classes; each maps to its own user-facing message so a
// failed call still produces a coherent assistant turn.
var (
	ErrUnhealthy  = errors.New("answer backend health check failed")
	ErrBadStatus  = errors.New("answer backend returned an error status")
	ErrConnection = errors.New("answer backend unreachable")
	ErrTimeout    = errors.New("answer backend timed out")
)

const healthProbeTimeout = 5 * time.Second

// Client talks to the answer backend over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a client for the backend at baseURL. The timeout bounds
// a single Ask call, health probes use a shorter fixed budget.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger,
	}
}

type askRequest struct {
	Content string `json:"content"`
}

type askResponse struct {
	Content string          `json:"content"`
	Sources []models.Source `json:"sources,omitempty"`
}

// Healthy probes GET /health. The verdict is never cached; callers probe
// before every Ask so a backend that died mid-session is noticed.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Ask sends the user's question and returns the reply text plus any
// structured sources the backend chose to attach. Errors are always one
// of the sentinel classes above (wrapped).
func (c *Client) Ask(ctx context.Context, content string) (string, []models.Source, error) {
	if err := c.Healthy(ctx); err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(askRequest{Content: content})
	if err != nil {
		return "", nil, fmt.Errorf("encode ask request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("build ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ask failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ask returned error status", zap.Int("status", resp.StatusCode))
		return "", nil, fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
	}

	var body askResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("%w: decode response: %v", ErrBadStatus, err)
	}
	return body.Content, body.Sources, nil
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// FallbackMessage renders a failure as assistant-visible text so the
// conversation continues instead of surfacing an exception.
func FallbackMessage(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "답변 생성이 너무 오래 걸려 중단되었습니다. 잠시 후 다시 질문해 주세요."
	case errors.Is(err, ErrUnhealthy):
		return "IM.FACT 답변 서비스가 점검 중입니다. 잠시 후 다시 시도해 주세요."
	case errors.Is(err, ErrBadStatus):
		return "답변 서비스에서 오류가 발생했습니다. 질문을 다시 보내 주세요."
	default:
		return "답변 서비스에 연결할 수 없습니다. 네트워크 상태를 확인한 뒤 다시 시도해 주세요."
	}
}
