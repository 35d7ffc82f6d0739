// Package client talks to a running RepCoach service.
package client

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

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/registry"
	"github.com/claude/repcoach/internal/replay"
	"github.com/claude/repcoach/internal/session"
)

// Client sends sessions and frames to the RepCoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	// backoff is the wait before the second attempt; it doubles afterwards.
	backoff time.Duration
}

// New creates a client for serverURL. apiKey may be empty when the server
// does not require one.
func New(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// Exercises retrieves the server's catalog.
func (c *Client) Exercises(ctx context.Context) ([]*exercise.Exercise, error) {
	var out []*exercise.Exercise
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("fetching exercises: %w", err)
	}
	return out, nil
}

// CreateSession starts a session on the server.
func (c *Client) CreateSession(ctx context.Context, p registry.CreateParams) (registry.Info, error) {
	var info registry.Info
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", p, http.StatusCreated, &info); err != nil {
		return registry.Info{}, fmt.Errorf("creating session: %w", err)
	}
	return info, nil
}

// Session fetches a session snapshot.
func (c *Client) Session(ctx context.Context, id string) (registry.Info, error) {
	var info registry.Info
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id, nil, http.StatusOK, &info); err != nil {
		return registry.Info{}, fmt.Errorf("fetching session: %w", err)
	}
	return info, nil
}

// DeleteSession ends a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+id, nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// frameRequest is the wire form of one frame; the recording timestamp stays local.
type frameRequest struct {
	Landmarks  any     `json:"landmarks"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Normalized bool    `json:"normalized,omitempty"`
}

// SendFrame posts one recorded frame to session id.
// Retries up to 3 times with exponential backoff on failure.
func (c *Client) SendFrame(ctx context.Context, id string, rec replay.Record) (session.Output, error) {
	data, err := json.Marshal(frameRequest{
		Landmarks:  rec.Landmarks,
		Width:      rec.Width,
		Height:     rec.Height,
		Normalized: rec.Normalized,
	})
	if err != nil {
		return session.Output{}, fmt.Errorf("marshaling frame: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return session.Output{}, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		var out session.Output
		err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+id+"/frames", json.RawMessage(data), http.StatusOK, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		// Client errors will not improve on retry.
		var se *StatusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			break
		}
	}

	return session.Output{}, fmt.Errorf("sending frame: %w", lastErr)
}

// Stream sends every record of src to session id. The server clocks frames on
// arrival, so with realtime set the gaps between recording timestamps are
// reproduced. onFrame may be nil.
func (c *Client) Stream(ctx context.Context, id string, src *replay.Reader, realtime bool, onFrame func(replay.Record, session.Output)) (int, error) {
	sent := 0
	var prev int64
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		if realtime && sent > 0 && rec.TMillis > prev {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(time.Duration(rec.TMillis-prev) * time.Millisecond):
			}
		}
		prev = rec.TMillis

		out, err := c.SendFrame(ctx, id, rec)
		if err != nil {
			return sent, fmt.Errorf("frame %d: %w", sent+1, err)
		}
		sent++
		if onFrame != nil {
			onFrame(rec, out)
		}
	}
}

// StatusError is an unexpected HTTP status from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
