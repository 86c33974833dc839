package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a form webhook came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	payload := buildSignaturePayload(webhookURL, r.PostForm)
	return hmac.Equal([]byte(signature), []byte(computeSignature(payload, authToken)))
}

// buildSignaturePayload is the URL followed by every sorted key/value pair.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateMetaSignature checks an X-Hub-Signature-256 header ("sha256=<hex>")
// against the raw request body.
func ValidateMetaSignature(header string, body []byte, appSecret string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || sig == "" {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// MetaSignature returns the header value Meta would send for body.
func MetaSignature(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Inbound webhook sources.
const (
	ProviderWhatsApp = "whatsapp"
	ProviderTwilio   = "twilio"
)

// InboundMessage is a provider-neutral inbound text.
type InboundMessage struct {
	// Provider names the webhook source; message ids are unique per provider.
	Provider  string
	MessageID string
	From      string
	To        string
	Body      string
}

// ParseTwilioWebhook reads the form fields of an inbound SMS webhook.
func ParseTwilioWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	return &InboundMessage{
		Provider:  ProviderTwilio,
		MessageID: r.FormValue("MessageSid"),
		From:      r.FormValue("From"),
		To:        r.FormValue("To"),
		Body:      r.FormValue("Body"),
	}, nil
}
