// internal/rooms/rooms.go

// Package rooms is a thin HTTP client for the room service. Games report
// their lifecycle back to the room that spawned them.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client implements game.RoomUpdater against the room service HTTP API.
// An empty base URL disables it entirely.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// UpdateRoomStatus PATCHes the room's status. No-op when unconfigured.
func (c *Client) UpdateRoomStatus(ctx context.Context, roomID, status string) error {
	if c == nil || c.baseURL == "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("marshal room status: %w", err)
	}
	url := fmt.Sprintf("%s/rooms/%s/status", c.baseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build room status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("update room %s: %w", roomID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("update room %s: unexpected status %d", roomID, resp.StatusCode)
	}
	return nil
}
