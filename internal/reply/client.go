// Package reply is the client of the remote reply API.
package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/pkg/tracing"
)

// ErrUnsuccessful is returned for any response other than a 2xx carrying
// {"success": true, "reply": ...}.
var ErrUnsuccessful = errors.New("reply api returned no reply")

// TokenFunc extracts the caller's bearer token from a request context.
type TokenFunc func(ctx context.Context) string

// Client posts user turns to the reply API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	token      TokenFunc
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat",
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

// Reply sends message in conversationID and returns the assistant reply.
func (c *Client) Reply(ctx context.Context, conversationID, message string) (string, error) {
	ctx, span := tracing.Tracer("reply").Start(ctx, "reply.Reply")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	reply, err := c.do(ctx, conversationID, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
	}
	return reply, err
}

func (c *Client) do(ctx context.Context, conversationID, message string) (string, error) {
	body, err := json.Marshal(model.ReplyRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reply api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrUnsuccessful, resp.StatusCode)
	}

	var out model.ReplyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsuccessful, err)
	}
	if !out.Success {
		return "", fmt.Errorf("%w: %s", ErrUnsuccessful, out.Error)
	}
	return out.Reply, nil
}
