package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client posts JSON card payloads to a chat webhook. A zero URL client is a
// noop so callers do not need to special-case unconfigured workspaces.
type Client struct {
	HTTP *http.Client
}

func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

type Card struct {
	Title string     `json:"title"`
	Text  string     `json:"text"`
	Facts []CardFact `json:"facts,omitempty"`
}

type CardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (c *Client) Post(ctx context.Context, url string, card Card) error {
	if strings.TrimSpace(url) == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"@type":    "MessageCard",
		"@context": "http://schema.org/extensions",
		"title":    card.Title,
		"text":     card.Text,
		"sections": []map[string]any{{"facts": card.Facts}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook post failed with status %d", resp.StatusCode)
	}
	return nil
}
