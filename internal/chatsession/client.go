package chatsession

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the docchat HTTP API. It implements Asker and Subscriber.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No overall timeout: answers can be slow and streams are long lived.
		httpClient: &http.Client{},
	}
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-OK response from the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d (code %d): %s", e.Status, e.Code, e.Message)
}

type wireTurn struct {
	ID        uint      `json:"id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (t wireTurn) toMessage() Message {
	return Message{
		ID:        strconv.FormatUint(uint64(t.ID), 10),
		Role:      Role(t.Role),
		Text:      t.Message,
		CreatedAt: t.CreatedAt,
	}
}

func toMessages(turns []wireTurn) []Message {
	out := make([]Message, len(turns))
	for i, t := range turns {
		out[i] = t.toMessage()
	}
	return out
}

func (c *Client) chatURL(documentID string) string {
	return c.baseURL + "/api/v1/documents/" + url.PathEscape(documentID) + "/chat"
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) Ask(ctx context.Context, documentID, question string) (string, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", fmt.Errorf("marshal question failed: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.chatURL(documentID), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		AI wireTurn `json:"ai"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	return result.AI.Message, nil
}

// Transcript fetches the full ordered transcript once.
func (c *Client) Transcript(ctx context.Context, documentID string) ([]Message, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.chatURL(documentID), nil)
	if err != nil {
		return nil, err
	}
	var turns []wireTurn
	if err := c.do(req, &turns); err != nil {
		return nil, err
	}
	return toMessages(turns), nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response failed (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data failed: %w", err)
	}
	return nil
}

// Subscribe opens the server-sent event stream of transcript snapshots.
func (c *Client) Subscribe(ctx context.Context, documentID string) (<-chan []Message, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.chatURL(documentID)+"/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open transcript stream failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		var env envelope
		if json.NewDecoder(resp.Body).Decode(&env) == nil {
			apiErr.Code, apiErr.Message = env.Code, env.Message
		}
		return nil, apiErr
	}

	out := make(chan []Message)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		_ = readSnapshots(ctx, resp.Body, out)
	}()
	return out, nil
}

// readSnapshots parses "snapshot" events until r ends.
func readSnapshots(ctx context.Context, r io.Reader, out chan<- []Message) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)

	var (
		event string
		data  strings.Builder
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "snapshot" && data.Len() > 0 {
				var turns []wireTurn
				if err := json.Unmarshal([]byte(data.String()), &turns); err != nil {
					return fmt.Errorf("decode snapshot failed: %w", err)
				}
				select {
				case out <- toMessages(turns):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("read transcript stream failed: %w", err)
	}
	return nil
}
