package wa

import (
	"strings"

	"github.com/example/wa-concierge/internal/models"
)

// WebhookPayload mirrors the Cloud API delivery envelope. Only the fields
// the concierge consumes are declared.
type WebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []rawMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type rawMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *struct {
		Caption string `json:"caption"`
	} `json:"image"`
	Interactive *struct {
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// Inbound is one normalized inbound message. Text carries the usable body
// regardless of message type: text body, image caption, or the interactive
// button payload id.
type Inbound struct {
	From     string
	Type     string
	Text     string
	Location *models.Coord
}

// Messages flattens the nested delivery envelope into the list of inbound
// messages, normalizing sender ids as it goes.
func (p *WebhookPayload) Messages() []Inbound {
	var out []Inbound
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				in := Inbound{From: NormalizeSender(m.From), Type: m.Type}
				switch {
				case m.Text != nil:
					in.Text = m.Text.Body
				case m.Interactive != nil && m.Interactive.ButtonReply != nil:
					in.Text = m.Interactive.ButtonReply.ID
				case m.Image != nil:
					in.Text = m.Image.Caption
				}
				if m.Location != nil {
					in.Location = &models.Coord{Lat: m.Location.Latitude, Lon: m.Location.Longitude}
				}
				out = append(out, in)
			}
		}
	}
	return out
}

// NormalizeSender strips transport-specific suffixes so the bare number is
// a stable user key: "27821234567:3@s.whatsapp.net" -> "27821234567".
func NormalizeSender(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[:i]
	}
	return id
}
