package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/salonbook/cmd/mainconfig"
	"github.com/wolfman30/salonbook/internal/app/bootstrap"
	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/internal/reminders"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type reminderRunner interface {
	Run(ctx context.Context) (*reminders.Summary, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var awsCfg *aws.Config
	if mainconfig.AWSEnabled(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	svc, err := bootstrap.BuildServices(cfg, bootstrap.Infra{Pool: pool, Redis: redisClient, AWS: awsCfg}, nil, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler(svc.Reminders, logger))
}

// handler runs one reminder batch per scheduled EventBridge invocation.
func handler(runner reminderRunner, logger *logging.Logger) func(context.Context, events.CloudWatchEvent) (*reminders.Summary, error) {
	return func(ctx context.Context, evt events.CloudWatchEvent) (*reminders.Summary, error) {
		summary, err := runner.Run(ctx)
		if err != nil {
			logger.Error("reminder run failed", "error", err, "event_id", evt.ID)
			return nil, err
		}
		logger.Info("reminder run finished",
			"event_id", evt.ID,
			"run_id", summary.RunID,
			"processed", summary.TotalProcessed,
			"sent", summary.Sent,
			"failed", summary.Failed,
		)
		return summary, nil
	}
}
