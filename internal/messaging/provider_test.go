package messaging

import (
	"strings"
	"testing"
)

func TestBuildSMSSenderMissingCredentials(t *testing.T) {
	sender, provider, reason := BuildSMSSender(ProviderSelectionConfig{}, nil)
	if sender != nil || provider != "" {
		t.Fatalf("expected no sender, got %T %q", sender, provider)
	}
	for _, want := range []string{"TELNYX_API_KEY missing", "TWILIO_AUTH_TOKEN missing"} {
		if !strings.Contains(reason, want) {
			t.Fatalf("reason %q missing %q", reason, want)
		}
	}
}

func TestBuildSMSSenderForcedProvider(t *testing.T) {
	cfg := ProviderSelectionConfig{
		Preference:       SMSProviderTwilio,
		FromNumber:       "+972500000000",
		TelnyxAPIKey:     "key",
		TelnyxProfileID:  "profile",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
	}
	sender, provider, _ := BuildSMSSender(cfg, nil)
	if _, ok := sender.(*TwilioSender); !ok || provider != SMSProviderTwilio {
		t.Fatalf("expected twilio sender, got %T %q", sender, provider)
	}

	cfg.Preference = SMSProviderTelnyx
	cfg.TelnyxAPIKey = ""
	sender, provider, reason := BuildSMSSender(cfg, nil)
	if sender != nil || provider != "" || !strings.Contains(reason, "TELNYX_API_KEY") {
		t.Fatalf("expected telnyx to be unavailable, got %T %q %q", sender, provider, reason)
	}
}

func TestBuildSMSSenderAutoFailover(t *testing.T) {
	cfg := ProviderSelectionConfig{
		FromNumber:       "+972500000000",
		TelnyxAPIKey:     "key",
		TelnyxProfileID:  "profile",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
	}
	sender, provider, reason := BuildSMSSender(cfg, nil)
	if _, ok := sender.(*FailoverMessenger); !ok {
		t.Fatalf("expected failover sender, got %T", sender)
	}
	if provider != "telnyx+twilio" || reason != "" {
		t.Fatalf("unexpected provider %q reason %q", provider, reason)
	}
}
