package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/internal/domain/types"
)

const idempotencyKeyHeader = "Idempotency-Key"

// HTTPClient is a Driver talking to a running ladder server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the server at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *HTTPClient) CreatePlayer(ctx context.Context, name, surname string) error {
	body := map[string]string{"name": name, "surname": surname}
	return c.do(ctx, http.MethodPost, "/players", nil, body, nil)
}

func (c *HTTPClient) ChooseOpponent(ctx context.Context, name, surname string) (int, error) {
	var out struct {
		LevelID int `json:"level_id"`
	}
	if err := c.do(ctx, http.MethodPost, playerPath(name, surname)+"/opponent", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.LevelID, nil
}

func (c *HTTPClient) RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64, key string) (types.Standing, error) {
	var st types.Standing
	body := map[string]any{"outcome": outcome.String(), "reward": reward}
	var hdr http.Header
	if key != "" {
		hdr = http.Header{idempotencyKeyHeader: []string{key}}
	}
	err := c.do(ctx, http.MethodPost, playerPath(name, surname)+"/outcome", hdr, body, &st)
	return st, err
}

func (c *HTTPClient) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	var out []types.Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil, nil, &out)
	return out, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, hdr http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps an API error body back onto the domain sentinels.
func statusError(method, path string, status int, data []byte) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &body)

	var kind error
	switch body.Code {
	case "not_found":
		kind = matchmaking.ErrNotFound
	case "already_exists":
		kind = repository.ErrAlreadyExists
	case "precondition_failed":
		kind = matchmaking.ErrPrecondition
	case "store_unavailable":
		kind = matchmaking.ErrStoreIO
	case "in_flight":
		kind = ErrInFlight
	case "bad_request":
		kind = repository.ErrInvalidRecord
	default:
		kind = ErrUnexpectedStatus
	}
	return fmt.Errorf("%s %s: %d: %w: %s", method, path, status, kind, body.Message)
}

func playerPath(name, surname string) string {
	return "/players/" + url.PathEscape(name) + "/" + url.PathEscape(surname)
}
