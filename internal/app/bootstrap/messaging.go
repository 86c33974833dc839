package bootstrap

import (
	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/internal/messaging"
	"github.com/wolfman30/salonbook/pkg/logging"
)

// Channels holds the outbound senders. Either may be nil when unconfigured.
type Channels struct {
	WhatsApp    messaging.Sender
	SMS         messaging.Sender
	SMSProvider string
}

// BuildChannels creates the WhatsApp primary and the SMS fallback sender.
func BuildChannels(cfg *appconfig.Config, logger *logging.Logger) Channels {
	if logger == nil {
		logger = logging.Default()
	}
	var out Channels
	if cfg == nil {
		return out
	}

	if cfg.WhatsAppConfigured() {
		out.WhatsApp = messaging.NewWhatsAppSender(messaging.WhatsAppConfig{
			AccessToken:   cfg.WhatsAppAccessToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			APIVersion:    cfg.WhatsAppAPIVersion,
			BaseURL:       cfg.WhatsAppBaseURL,
		}, logger)
	} else {
		logger.Warn("whatsapp credentials missing; every send falls back to sms")
	}

	sms, provider, reason := messaging.BuildSMSSender(messaging.ProviderSelectionConfig{
		Preference:       cfg.SMSProvider,
		FromNumber:       cfg.SMSFromNumber,
		TelnyxAPIKey:     cfg.TelnyxAPIKey,
		TelnyxProfileID:  cfg.TelnyxMessagingProfileID,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
	}, logger)
	if sms == nil {
		logger.Warn("sms fallback disabled", "reason", reason)
		return out
	}
	out.SMS = sms
	out.SMSProvider = provider
	logger.Info("sms fallback configured", "provider", provider)
	return out
}
