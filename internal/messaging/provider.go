package messaging

import (
	"fmt"
	"strings"

	"github.com/wolfman30/salonbook/pkg/logging"
)

const (
	// SMSProviderAuto tries Telnyx first, then Twilio.
	SMSProviderAuto = "auto"
	// SMSProviderTelnyx forces the Telnyx sender when credentials exist.
	SMSProviderTelnyx = "telnyx"
	// SMSProviderTwilio forces the Twilio sender when credentials exist.
	SMSProviderTwilio = "twilio"
)

// ProviderSelectionConfig captures the credentials required to build the SMS sender.
type ProviderSelectionConfig struct {
	Preference       string
	FromNumber       string
	TelnyxAPIKey     string
	TelnyxProfileID  string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// BuildSMSSender instantiates the SMS fallback channel based on the preferred provider.
// It returns the sender, the provider that was selected, and a reason when no provider could be initialized.
func BuildSMSSender(cfg ProviderSelectionConfig, logger *logging.Logger) (Sender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = SMSProviderAuto
	}

	missing := map[string]string{}
	var telnyx, twilio Sender

	if cfg.TelnyxAPIKey != "" && cfg.TelnyxProfileID != "" {
		telnyx = NewTelnyxSender(cfg.TelnyxAPIKey, cfg.TelnyxProfileID, cfg.FromNumber, logger)
	} else {
		var reasons []string
		if cfg.TelnyxAPIKey == "" {
			reasons = append(reasons, "TELNYX_API_KEY missing")
		}
		if cfg.TelnyxProfileID == "" {
			reasons = append(reasons, "TELNYX_MESSAGING_PROFILE_ID missing")
		}
		missing[SMSProviderTelnyx] = strings.Join(reasons, ", ")
	}

	twilioFrom := cfg.TwilioFromNumber
	if twilioFrom == "" {
		twilioFrom = cfg.FromNumber
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilio = NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, twilioFrom, logger)
	} else {
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		missing[SMSProviderTwilio] = strings.Join(reasons, ", ")
	}

	if preference != SMSProviderAuto {
		if preference == SMSProviderTelnyx && telnyx != nil {
			return telnyx, SMSProviderTelnyx, ""
		}
		if preference == SMSProviderTwilio && twilio != nil {
			return twilio, SMSProviderTwilio, ""
		}
		reason := missing[preference]
		if reason == "" {
			reason = fmt.Sprintf("%s messenger not configured", preference)
		}
		return nil, "", reason
	}

	if telnyx != nil && twilio != nil {
		return NewFailoverMessenger(telnyx, SMSProviderTelnyx, twilio, SMSProviderTwilio, logger), SMSProviderTelnyx + "+" + SMSProviderTwilio, ""
	}
	if telnyx != nil {
		return telnyx, SMSProviderTelnyx, ""
	}
	if twilio != nil {
		return twilio, SMSProviderTwilio, ""
	}

	reasons := []string{
		fmt.Sprintf("%s: %s", SMSProviderTelnyx, missing[SMSProviderTelnyx]),
		fmt.Sprintf("%s: %s", SMSProviderTwilio, missing[SMSProviderTwilio]),
	}
	return nil, "", strings.Join(reasons, "; ")
}
