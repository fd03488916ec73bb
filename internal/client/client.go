package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tether/internal/types"
)

// Client is the REST gateway to the thread server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *Client) GetThread(ctx context.Context, id string) (*types.ThreadSnapshot, error) {
	var snapshot types.ThreadSnapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/threads/"+strings.TrimSpace(id), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) ListThreads(ctx context.Context) ([]types.ThreadSummary, error) {
	var resp ThreadsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/threads", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Threads, nil
}

func (c *Client) SendMessage(ctx context.Context, id string, req SendMessageRequest) (SendAck, error) {
	var ack SendAck
	path := fmt.Sprintf("/v1/threads/%s/messages", strings.TrimSpace(id))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &ack); err != nil {
		return SendAck{}, err
	}
	return ack, nil
}

func (c *Client) Interrupt(ctx context.Context, id string, req InterruptRequest) (InterruptAck, error) {
	var ack InterruptAck
	path := fmt.Sprintf("/v1/threads/%s/interrupt", strings.TrimSpace(id))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &ack); err != nil {
		return InterruptAck{}, err
	}
	return ack, nil
}

func (c *Client) UploadAttachment(ctx context.Context, id string, att types.Attachment) (types.PreparedRef, error) {
	var ref types.PreparedRef
	path := fmt.Sprintf("/v1/threads/%s/attachments", strings.TrimSpace(id))
	req := UploadAttachmentRequest{
		Filename: att.Filename,
		MimeType: att.MimeType,
		Data:     att.Data,
	}
	if err := c.doJSON(ctx, http.MethodPost, path, req, &ref); err != nil {
		return types.PreparedRef{}, err
	}
	return ref, nil
}

func (c *Client) GetConfig(ctx context.Context, cwd string) (ClientConfig, error) {
	var cfg ClientConfig
	path := "/v1/config"
	if cwd = strings.TrimSpace(cwd); cwd != "" {
		query := url.Values{"cwd": []string{cwd}}
		path += "?" + query.Encode()
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c *Client) CreateThread(ctx context.Context, cwd string) (types.ThreadSummary, error) {
	var summary types.ThreadSummary
	if err := c.doJSON(ctx, http.MethodPost, "/v1/threads", CreateThreadRequest{Cwd: cwd}, &summary); err != nil {
		return types.ThreadSummary{}, err
	}
	return summary, nil
}

func (c *Client) ArchiveThread(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/threads/%s/archive", strings.TrimSpace(id))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an APIError, or nil when it is not one.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
