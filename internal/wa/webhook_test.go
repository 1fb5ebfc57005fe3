package wa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSender(t *testing.T) {
	cases := map[string]string{
		"27821234567":                   "27821234567",
		"27821234567@s.whatsapp.net":    "27821234567",
		"27821234567:12@s.whatsapp.net": "27821234567",
		"27821234567:3":                 "27821234567",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSender(in), "input %q", in)
	}
}

func TestMessagesFlattensEnvelope(t *testing.T) {
	raw := `{
	  "entry": [{"changes": [{"value": {"messages": [
	    {"from": "27821234567:2@s.whatsapp.net", "type": "text", "text": {"body": "taxi to Sandton"}},
	    {"from": "27821234567", "type": "location", "location": {"latitude": -26.2, "longitude": 28.05}},
	    {"from": "27829999999", "type": "interactive", "interactive": {"button_reply": {"id": "track_ride"}}}
	  ]}}]}]
	}`
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	msgs := p.Messages()
	require.Len(t, msgs, 3)

	assert.Equal(t, "27821234567", msgs[0].From)
	assert.Equal(t, "taxi to Sandton", msgs[0].Text)

	require.NotNil(t, msgs[1].Location)
	assert.InDelta(t, -26.2, msgs[1].Location.Lat, 1e-9)

	assert.Equal(t, "track_ride", msgs[2].Text)
}
