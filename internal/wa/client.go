// Package wa is the WhatsApp gateway boundary: outbound message sends and
// inbound webhook payload normalization.
package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Button is one interactive reply button. ID comes back verbatim as the
// interactive reply payload on the next inbound message.
type Button struct {
	ID    string
	Title string
}

// Sender is the outbound surface the rest of the service depends on. Each
// call returns the provider message id; delivery beyond provider
// acknowledgment is not guaranteed.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendInteractive(ctx context.Context, to, body string, buttons []Button) (string, error)
	SendImage(ctx context.Context, to, url, caption string) (string, error)
}

// Client posts to the WhatsApp Cloud API.
type Client struct {
	Endpoint string // e.g. https://graph.facebook.com/v19.0
	Token    string
	PhoneID  string
	HTTP     *http.Client
}

func NewClient(endpoint, token, phoneID string) *Client {
	return &Client{
		Endpoint: endpoint,
		Token:    token,
		PhoneID:  phoneID,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	})
}

func (c *Client) SendInteractive(ctx context.Context, to, body string, buttons []Button) (string, error) {
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type":  "reply",
			"reply": map[string]any{"id": b.ID, "title": b.Title},
		})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": body},
			"action": map[string]any{"buttons": btns},
		},
	})
}

func (c *Client) SendImage(ctx context.Context, to, url, caption string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]any{"link": url, "caption": caption},
	})
}

func (c *Client) post(ctx context.Context, payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/%s/messages", c.Endpoint, c.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("wa send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("wa send: status %d", resp.StatusCode)
	}
	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("wa send decode: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("wa send: no message id in response")
	}
	return out.Messages[0].ID, nil
}
