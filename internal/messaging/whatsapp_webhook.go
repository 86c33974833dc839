package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// whatsappWebhook mirrors the parts of the Cloud API webhook we read.
type whatsappWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
				} `json:"metadata"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Button struct {
						Text string `json:"text"`
					} `json:"button"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// flatInbound is the simplified shape some relays post.
type flatInbound struct {
	From      string `json:"from"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
	Message   string `json:"message"`
	Body      string `json:"body"`
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// ParseWhatsAppWebhook extracts inbound text messages from either the Cloud
// API envelope or a flat {from|phone, text|message|body, id|messageId} object.
// Status callbacks yield an empty slice.
func ParseWhatsAppWebhook(body []byte) ([]InboundMessage, error) {
	var envelope whatsappWebhook
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("messaging: decode whatsapp webhook: %w", err)
	}
	if envelope.Object != "" || len(envelope.Entry) > 0 {
		var out []InboundMessage
		for _, entry := range envelope.Entry {
			for _, change := range entry.Changes {
				for _, m := range change.Value.Messages {
					text := m.Text.Body
					if text == "" {
						text = m.Button.Text
					}
					if strings.TrimSpace(text) == "" {
						continue
					}
					out = append(out, InboundMessage{
						Provider:  ProviderWhatsApp,
						MessageID: m.ID,
						From:      m.From,
						To:        change.Value.Metadata.DisplayPhoneNumber,
						Body:      text,
					})
				}
			}
		}
		return out, nil
	}

	var flat flatInbound
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("messaging: decode inbound message: %w", err)
	}
	msg := InboundMessage{
		Provider:  ProviderWhatsApp,
		MessageID: firstNonEmpty(flat.ID, flat.MessageID),
		From:      firstNonEmpty(flat.From, flat.Phone),
		Body:      firstNonEmpty(flat.Text, flat.Message, flat.Body),
	}
	if msg.From == "" && msg.Body == "" {
		return nil, nil
	}
	return []InboundMessage{msg}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
