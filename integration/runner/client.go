package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/session"
)

const (
	// PollInterval is how often to check the session while an enemy is thinking
	PollInterval = 100 * time.Millisecond
	// BattleTimeout is max time a fight step may take
	BattleTimeout = 30 * time.Second
)

// Reply is the decoded outcome of one API call.
type Reply struct {
	Status int
	OK     bool
	View   session.View
	Error  string
}

// CreateSession starts a session via POST /v1/sessions.
func CreateSession(ctx context.Context, client *http.Client, baseURL string, opts session.CreateOptions) (session.View, error) {
	body, err := json.Marshal(opts)
	if err != nil {
		return session.View{}, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return session.View{}, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return session.View{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return session.View{}, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(b))
	}

	var view session.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return session.View{}, fmt.Errorf("failed to decode created session: %w", err)
	}
	return view, nil
}

// GetView retrieves the current session view.
func GetView(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (session.View, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil)
	if err != nil {
		return session.View{}, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return session.View{}, fmt.Errorf("failed to send session request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return session.View{}, fmt.Errorf("session endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var view session.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return session.View{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return view, nil
}

// Do sends one state-changing request under /v1/sessions/{id}. Error
// statuses are returned in the Reply, not as an error.
func Do(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, method, path string, payload any) (Reply, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/%s", baseURL, id, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	reply := Reply{Status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		var errResp handlers.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return reply, fmt.Errorf("%s returned %d with unreadable body: %w", path, resp.StatusCode, err)
		}
		reply.Error = errResp.Error
		return reply, nil
	}

	var action handlers.ActionResponse
	if err := json.NewDecoder(resp.Body).Decode(&action); err != nil {
		return reply, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	reply.OK = action.OK
	reply.View = action.Session
	return reply, nil
}

// PollForPlayerTurn polls the session until the enemy has acted.
func PollForPlayerTurn(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (session.View, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		view, err := GetView(ctx, client, baseURL, id)
		if err != nil {
			return view, err
		}
		if view.Battle == nil || !view.Battle.EnemyPending {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return view, fmt.Errorf("timeout waiting for enemy turn: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
