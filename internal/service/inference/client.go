package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/driroane/llamachat/internal/model/chat"
)

const completionsPath = "/v1/chat/completions"

// The model field is arbitrary for single-model local servers; they
// serve whatever is loaded regardless of the name.
const localModelName = "local-model"

// Config holds the network policy for talking to the model server.
type Config struct {
	BaseURL string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient
	// connection failure. Error responses from the server are final.
	Retries int
	// Backoff is the fixed pause between attempts.
	Backoff time.Duration
}

// Client performs completion calls against an OpenAI-compatible local
// inference server. It holds no conversation state.
type Client struct {
	baseURL string
	httpc   *http.Client
	retries int
	backoff time.Duration
}

func New(cfg Config) *Client {
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		retries: retries,
		backoff: cfg.Backoff,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate performs one completion call, retrying transient connection
// failures up to the configured count. It returns ErrTimeout,
// ErrBackendUnavailable, or *BackendError on failure; the caller never
// sees a raw transport error.
func (c *Client) Generate(ctx context.Context, req chat.GenerationRequest) (chat.GenerationResult, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return chat.GenerationResult{}, err
	}
	defer resp.Body.Close()

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return chat.GenerationResult{}, &BackendError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return chat.GenerationResult{}, &BackendError{Status: resp.StatusCode, Message: "response contains no choices"}
	}

	return chat.GenerationResult{Text: parsed.Choices[0].Message.Content}, nil
}

// GenerateStream performs a streaming completion call, invoking
// onDelta for every content fragment, and returns the accumulated
// reply. Connection failures before the stream starts are retried like
// Generate; a stream that breaks mid-way is not.
func (c *Client) GenerateStream(ctx context.Context, req chat.GenerationRequest, onDelta func(string)) (chat.GenerationResult, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return chat.GenerationResult{}, err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				break
			}
			continue
		}

		var parsed completionResponse
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			log.Printf("[inference] skipping malformed stream chunk: %v", err)
			continue
		}
		if len(parsed.Choices) == 0 {
			continue
		}
		if delta := parsed.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return chat.GenerationResult{}, c.classify(ctx, err)
	}

	return chat.GenerationResult{Text: full.String()}, nil
}

// Ping reports backend reachability. Any HTTP response counts as
// reachable; only a transport failure does not.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return c.classify(ctx, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// post runs the attempt loop: Attempting -> Retrying(n) -> final.
// Only transport-level failures move the machine to Retrying; a
// response of any status is final for the loop.
func (c *Client) post(ctx context.Context, req chat.GenerationRequest, stream bool) (*http.Response, error) {
	payload := completionRequest{
		Model:       localModelName,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Printf("[inference] retrying after transient failure (attempt %d/%d): %v", attempt, c.retries, lastErr)
			if err := c.sleep(ctx); err != nil {
				return nil, c.classify(ctx, lastErr)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build completion request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(httpReq)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, c.classify(ctx, err)
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &BackendError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		}
		return resp, nil
	}

	return nil, c.classify(ctx, lastErr)
}

func (c *Client) sleep(ctx context.Context) error {
	if c.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify converts a transport error into the typed taxonomy.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return context.Canceled
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if uw, ok := err.(interface{ Unwrap() error }); ok {
		if netErr, ok := uw.Unwrap().(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
