package messaging

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhatsAppWebhookEnvelope(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"display_phone_number": "97231234567"},
					"messages": [
						{"id": "wamid.1", "from": "972501234567", "type": "text", "text": {"body": "כן"}},
						{"id": "wamid.2", "from": "972501234567", "type": "image"}
					]
				}
			}]
		}]
	}`)
	msgs, err := ParseWhatsAppWebhook(body)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "wamid.1", msgs[0].MessageID)
	assert.Equal(t, "972501234567", msgs[0].From)
	assert.Equal(t, "כן", msgs[0].Body)
}

func TestParseWhatsAppWebhookStatusOnly(t *testing.T) {
	msgs, err := ParseWhatsAppWebhook([]byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseWhatsAppWebhookFlatShape(t *testing.T) {
	msgs, err := ParseWhatsAppWebhook([]byte(`{"phone":"0501234567","message":"ביטול","messageId":"m-1"}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, InboundMessage{Provider: ProviderWhatsApp, MessageID: "m-1", From: "0501234567", Body: "ביטול"}, msgs[0])

	_, err = ParseWhatsAppWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestMetaSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := MetaSignature(body, "app-secret")
	assert.True(t, strings.HasPrefix(header, "sha256="))
	assert.True(t, ValidateMetaSignature(header, body, "app-secret"))
	assert.False(t, ValidateMetaSignature(header, body, "other-secret"))
	assert.False(t, ValidateMetaSignature("sha256=zz", body, "app-secret"))
	assert.False(t, ValidateMetaSignature("", body, "app-secret"))
}

func TestTwilioSignatureRoundTrip(t *testing.T) {
	form := url.Values{"Body": {"yes"}, "From": {"+972501234567"}, "MessageSid": {"SM1"}}
	webhookURL := "https://book.example.com/whatsapp-responses"
	sig := computeSignature(buildSignaturePayload(webhookURL, form), "tok")

	req := httptest.NewRequest("POST", "/whatsapp-responses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	assert.True(t, ValidateTwilioSignature(req, "tok", webhookURL))

	msg, err := ParseTwilioWebhook(req)
	require.NoError(t, err)
	assert.Equal(t, "SM1", msg.MessageID)
	assert.Equal(t, "yes", msg.Body)
}
