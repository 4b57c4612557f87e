package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// InboundMessage is an extracted text message from a webhook delivery.
type InboundMessage struct {
	UserID    string
	Text      string
	MessageID string
}

// webhookPayload mirrors the Cloud API delivery envelope, text messages
// only. Everything else (media, reactions, status updates) is ignored.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// body. Verification is skipped (returns true) when no app secret is
// configured or the header is absent, matching Meta's development flow.
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" || header == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header))
}

// ParseWebhook extracts the first text message from a webhook body.
// Returns (nil, nil) for deliveries with nothing to process — status
// updates, media messages, empty entries. A malformed body is an error.
func ParseWebhook(body []byte) (*InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return nil, nil
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, nil
	}

	msg := value.Messages[0]
	if msg.Type != "text" || msg.Text == nil {
		return nil, nil
	}

	return &InboundMessage{
		UserID:    msg.From,
		Text:      msg.Text.Body,
		MessageID: msg.ID,
	}, nil
}
