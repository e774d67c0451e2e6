package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

// TurnRequest is the body posted to the backend's /turn endpoint.
type TurnRequest struct {
	SessionID string        `json:"session_id"`
	ContextID string        `json:"context_id"`
	UserID    string        `json:"user_id"`
	AppName   string        `json:"app_name"`
	Text      string        `json:"text,omitempty"`
	Action    string        `json:"action,omitempty"`
	State     *domain.State `json:"state,omitempty"`
}

// TurnResponse is the backend's reply. An absent state leaves the state unchanged.
type TurnResponse struct {
	Reply string          `json:"reply"`
	State json.RawMessage `json:"state,omitempty"`
}

// ErrorResponse is the body of a failed backend call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPClient is a Backend reached over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the backend at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send implements Backend by calling POST /turn.
func (c *HTTPClient) Send(ctx context.Context, sess session.Info, in Input, state *domain.State) (*Output, error) {
	req := TurnRequest{
		SessionID: string(sess.Handle),
		ContextID: sess.ContextID,
		UserID:    sess.UserID,
		AppName:   sess.AppName,
		Text:      in.Text,
		State:     state,
	}
	if in.Action != nil {
		req.Action = in.Action.String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/turn", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Session-ID", string(sess.Handle))
	httpReq.Header.Set("X-Context-ID", sess.ContextID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, errResp.Error)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var turn TurnResponse
	if err := json.Unmarshal(respBody, &turn); err != nil {
		return nil, fmt.Errorf("%w: failed to decode turn response: %v", ErrUnavailable, err)
	}

	out := &Output{Reply: turn.Reply}
	if len(turn.State) == 0 {
		out.State = state.Clone()
		return out, nil
	}
	newState, err := domain.DecodeState(turn.State)
	if err != nil {
		return nil, err
	}
	if newState == nil {
		newState = &domain.State{}
	}
	out.State = newState
	return out, nil
}
