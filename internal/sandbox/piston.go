// Package sandbox runs untrusted student code through the public Piston
// execution API.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

// Request describes one code execution.
type Request struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin,omitempty"`
}

// Result is the outcome of a run: combined output plus the raw streams and
// exit code of the run stage.
type Result struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// Client talks to a Piston-compatible execution endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin,omitempty"`
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   int    `json:"code"`
}

type pistonResponse struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Run      pistonStage  `json:"run"`
	Compile  *pistonStage `json:"compile,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Execute runs the code and returns its output. The public endpoint rate
// limits aggressively, so 429s are retried with backoff before giving up.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Version == "" {
		req.Version = "*"
	}
	payload, err := json.Marshal(pistonRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []pistonFile{{Content: req.Code}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding execute request: %w", err)
	}

	var body []byte
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		body, err = c.post(ctx, payload)
		if err == nil {
			break
		}
		if attempt+1 >= maxAttempts || !isRetryable(err) {
			return Result{}, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		backoff *= 2
	}

	var resp pistonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("decoding execute response: %w", err)
	}
	if resp.Message != "" {
		return Result{}, fmt.Errorf("execution rejected: %s", resp.Message)
	}

	// A compile failure never reaches the run stage; surface it as the run
	// output so the student sees the compiler diagnostics.
	if resp.Compile != nil && resp.Compile.Code != 0 {
		return Result{
			Language: resp.Language,
			Version:  resp.Version,
			Stdout:   resp.Compile.Stdout,
			Stderr:   resp.Compile.Stderr,
			Output:   resp.Compile.Output,
			ExitCode: resp.Compile.Code,
		}, nil
	}

	return Result{
		Language: resp.Language,
		Version:  resp.Version,
		Stdout:   resp.Run.Stdout,
		Stderr:   resp.Run.Stderr,
		Output:   resp.Run.Output,
		ExitCode: resp.Run.Code,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("piston returned status %d: %s", e.code, e.body)
}

func isRetryable(err error) bool {
	se, ok := err.(*statusError)
	return ok && (se.code == http.StatusTooManyRequests || se.code >= 500)
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling piston: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading piston response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}
