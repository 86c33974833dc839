package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/pkg/logging"
)

// BuildEmailSender picks SendGrid, then SES, then the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.SendGridAPIKey != "" {
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.EmailFromName,
		}, logger), "sendgrid"
	}
	if cfg != nil && cfg.SESFromEmail != "" && awsCfg != nil {
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger), "ses"
	}
	return notify.NewStubEmailSender(logger), "stub"
}
