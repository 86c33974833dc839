package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/archive"
	"github.com/wolfman30/salonbook/internal/calendar"
	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/internal/followup"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/internal/reminders"
	"github.com/wolfman30/salonbook/internal/responses"
	"github.com/wolfman30/salonbook/internal/tokens"
	"github.com/wolfman30/salonbook/internal/waitlist"
	"github.com/wolfman30/salonbook/pkg/logging"
)

// Infra is the set of external clients the services are built on.
// Redis and AWS are optional.
type Infra struct {
	Pool  appointments.PgxPool
	Redis *redis.Client
	AWS   *aws.Config
}

// Services is the fully wired workflow graph shared by the API and the lambdas.
type Services struct {
	Appointments *appointments.Store
	Tokens       *tokens.Service
	Preferences  *notifications.PreferenceStore
	Logs         *notifications.LogStore
	Dispatcher   *notifications.Dispatcher
	Promoter     *waitlist.Promoter
	Calendar     *calendar.Bridge
	Followup     *followup.Runner
	Responses    *responses.Service
	Reminders    *reminders.Runner
	Archive      *archive.Exporter

	SMSProvider  string
	EmailBackend string
}

// BuildServices wires stores, channels and workflows from config.
func BuildServices(cfg *appconfig.Config, infra Infra, m *metrics.WorkflowMetrics, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if infra.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location()

	appts := appointments.NewStore(infra.Pool)
	tokenService := tokens.NewService(tokens.NewStore(infra.Pool), appts, tokens.Config{
		TTL:        cfg.CancellationTokenTTL,
		LateWindow: cfg.LateCancellationWindow,
		Location:   loc,
	}, logger)
	prefs := notifications.NewPreferenceStore(infra.Pool, infra.Redis, cfg.PrefsCacheTTL)
	settings := notifications.NewSettingsStore(infra.Pool)
	logs := notifications.NewLogStore(infra.Pool)

	email, emailBackend := BuildEmailSender(cfg, infra.AWS, logger)
	alerter := notify.NewOwnerAlerter(email, logger)

	channels := BuildChannels(cfg, logger)
	dispatcher := notifications.NewDispatcher(notifications.Deps{
		Appointments:  appts,
		Tokens:        tokenService,
		Preferences:   prefs,
		Templates:     notifications.NewTemplateStore(infra.Pool),
		Settings:      settings,
		Logs:          logs,
		Owner:         alerter,
		WhatsApp:      channels.WhatsApp,
		SMS:           channels.SMS,
		Metrics:       m,
		Logger:        logger,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	promoter := waitlist.NewPromoter(waitlist.NewStore(infra.Pool), dispatcher, m, logger)
	bridge := calendar.NewBridge(buildCalendarSyncer(cfg, infra.AWS, logger), cfg.CalendarSyncTimeout, m, logger)
	after := followup.New(followup.Deps{
		Calendar: bridge,
		Waitlist: promoter,
		Alerts:   alerter,
		Settings: settings,
		Location: loc,
		Logger:   logger,
	})

	responseService := responses.NewService(responses.Deps{
		Appointments: appts,
		Logs:         logs,
		Replies:      dispatcher,
		Followup:     after,
		Dedupe:       responses.NewProcessedStore(infra.Pool),
		Metrics:      m,
		Logger:       logger,
	}, responses.Config{
		MatchWindow:      cfg.InboundMatchWindow,
		DateWindow:       cfg.InboundMatchWindow,
		UnmatchedOwnerID: cfg.UnmatchedOwnerID,
		Location:         loc,
	})

	var ledger reminders.Ledger
	if infra.AWS != nil && cfg.ReminderRunsTable != "" {
		ledger = reminders.NewRunLedger(dynamodb.NewFromConfig(*infra.AWS), cfg.ReminderRunsTable)
	}
	runner := reminders.NewRunner(appts, dispatcher, ledger, reminders.Config{Location: loc}, m, logger)

	var archiveClient archive.S3API
	if infra.AWS != nil && cfg.ArchiveBucket != "" {
		archiveClient = s3.NewFromConfig(*infra.AWS)
	}
	exporter := archive.NewExporter(logs, archive.NewStore(archiveClient, cfg.ArchiveBucket, cfg.ArchivePrefix, logger), loc, logger)

	logger.Info("workflow services wired",
		"whatsapp", channels.WhatsApp != nil,
		"sms_provider", channels.SMSProvider,
		"email", emailBackend,
		"run_ledger", ledger != nil,
		"archive", archiveClient != nil,
	)

	return &Services{
		Appointments: appts,
		Tokens:       tokenService,
		Preferences:  prefs,
		Logs:         logs,
		Dispatcher:   dispatcher,
		Promoter:     promoter,
		Calendar:     bridge,
		Followup:     after,
		Responses:    responseService,
		Reminders:    runner,
		Archive:      exporter,
		SMSProvider:  channels.SMSProvider,
		EmailBackend: emailBackend,
	}, nil
}

// buildCalendarSyncer prefers the SQS queue, then the HTTP endpoint. A nil
// syncer turns calendar sync off.
func buildCalendarSyncer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) calendar.Syncer {
	switch {
	case cfg.CalendarQueueURL != "" && awsCfg != nil:
		logger.Info("calendar sync via sqs", "queue_url", cfg.CalendarQueueURL)
		return calendar.NewSQSSyncer(sqs.NewFromConfig(*awsCfg), cfg.CalendarQueueURL)
	case cfg.CalendarSyncURL != "":
		logger.Info("calendar sync via http", "url", cfg.CalendarSyncURL)
		return calendar.NewHTTPSyncer(cfg.CalendarSyncURL, cfg.CalendarSyncToken, cfg.CalendarSyncTimeout)
	default:
		logger.Warn("calendar sync disabled")
		return nil
	}
}
