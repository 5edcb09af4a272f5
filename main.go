package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	logger "github.com/Financial-Times/go-logger"
	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Financial-Times/upload-transcode-dispatcher/dispatch"
	"github.com/Financial-Times/upload-transcode-dispatcher/ecs"
	"github.com/Financial-Times/upload-transcode-dispatcher/s3"
	"github.com/Financial-Times/upload-transcode-dispatcher/sns"
	"github.com/Financial-Times/upload-transcode-dispatcher/sqs"
)

const (
	appDescription  = "Listens for video upload notifications and starts a transcoding task for each uploaded video"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// .env must be loaded before the options below read their env vars.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Unable to load .env file: %v\n", err)
	}

	app := cli.App("upload-transcode-dispatcher", appDescription)

	appSystemCode := app.String(cli.StringOpt{
		Name:   "app-system-code",
		Value:  "upload-transcode-dispatcher",
		Desc:   "System Code of the application",
		EnvVar: "APP_SYSTEM_CODE",
	})
	appName := app.String(cli.StringOpt{
		Name:   "app-name",
		Value:  "Upload Transcode Dispatcher",
		Desc:   "Application name",
		EnvVar: "APP_NAME",
	})
	port := app.Int(cli.IntOpt{
		Name:   "port",
		Value:  8080,
		Desc:   "Port to serve health, status and metrics endpoints on",
		EnvVar: "APP_PORT",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Value:  "INFO",
		Desc:   "App log level",
		EnvVar: "LOG_LEVEL",
	})
	awsRegion := app.String(cli.StringOpt{
		Name:   "aws-region",
		Value:  "us-east-1",
		Desc:   "AWS region of the queue, cluster and output bucket",
		EnvVar: "AWS_REGION",
	})
	queueURL := app.String(cli.StringOpt{
		Name:   "sqs-queue-url",
		Desc:   "URL of the SQS queue receiving upload notifications",
		EnvVar: "AWS_SQS_URL",
	})
	sqsEndpoint := app.String(cli.StringOpt{
		Name:   "sqs-endpoint",
		Desc:   "Endpoint override for SQS, for local testing",
		EnvVar: "AWS_SQS_ENDPOINT",
	})
	waitTime := app.Int(cli.IntOpt{
		Name:   "sqs-wait-time",
		Value:  5,
		Desc:   "Seconds to long-poll the queue before an empty receive returns",
		EnvVar: "SQS_WAIT_TIME",
	})
	visibilityTimeout := app.Int(cli.IntOpt{
		Name:   "sqs-visibility-timeout",
		Value:  0,
		Desc:   "Seconds a received message stays hidden from other workers, 0 for the queue default",
		EnvVar: "SQS_VISIBILITY_TIMEOUT",
	})
	ecsEndpoint := app.String(cli.StringOpt{
		Name:   "ecs-endpoint",
		Desc:   "Endpoint override for ECS, for local testing",
		EnvVar: "AWS_ECS_ENDPOINT",
	})
	taskDefinition := app.String(cli.StringOpt{
		Name:   "ecs-task-definition",
		Desc:   "Task definition family:revision or ARN of the transcoder task",
		EnvVar: "ECS_TASK_DEFINITION",
	})
	cluster := app.String(cli.StringOpt{
		Name:   "ecs-cluster",
		Desc:   "Name or ARN of the cluster transcoding tasks run on",
		EnvVar: "ECS_CLUSTER",
	})
	containerName := app.String(cli.StringOpt{
		Name:   "ecs-container-name",
		Value:  "video-transcoder",
		Desc:   "Name of the transcoder container in the task definition",
		EnvVar: "ECS_CONTAINER_NAME",
	})
	launchType := app.String(cli.StringOpt{
		Name:   "ecs-launch-type",
		Value:  ecs.DefaultLaunchType,
		Desc:   "Launch type of transcoding tasks",
		EnvVar: "ECS_LAUNCH_TYPE",
	})
	securityGroups := app.Strings(cli.StringsOpt{
		Name:   "ecs-security-groups",
		Value:  []string{},
		Desc:   "Comma separated security groups of transcoding tasks",
		EnvVar: "ECS_SECURITY_GROUPS",
	})
	subnets := app.Strings(cli.StringsOpt{
		Name:   "ecs-subnets",
		Value:  []string{},
		Desc:   "Comma separated subnets transcoding tasks are placed in",
		EnvVar: "ECS_SUBNETS",
	})
	assignPublicIP := app.Bool(cli.BoolOpt{
		Name:   "ecs-assign-public-ip",
		Value:  true,
		Desc:   "Whether transcoding tasks get a public IP",
		EnvVar: "ECS_ASSIGN_PUBLIC_IP",
	})
	outputBucket := app.String(cli.StringOpt{
		Name:   "output-bucket",
		Desc:   "S3 bucket transcoded videos are written to",
		EnvVar: "OUTPUT_BUCKET",
	})
	snsEndpoint := app.String(cli.StringOpt{
		Name:   "sns-endpoint",
		Desc:   "Endpoint override for SNS, for local testing",
		EnvVar: "AWS_SNS_ENDPOINT",
	})
	eventsTopicArn := app.String(cli.StringOpt{
		Name:   "events-topic-arn",
		Desc:   "SNS topic to announce started transcoding tasks on, publishing is disabled when empty",
		EnvVar: "EVENTS_TOPIC_ARN",
	})
	processTimeout := app.Int(cli.IntOpt{
		Name:   "process-timeout",
		Value:  60,
		Desc:   "Seconds allowed to dispatch and acknowledge one message",
		EnvVar: "PROCESS_TIMEOUT",
	})
	receiveErrorBackoff := app.Int(cli.IntOpt{
		Name:   "receive-error-backoff",
		Value:  5,
		Desc:   "Seconds to wait before polling again after the queue could not be read",
		EnvVar: "RECEIVE_ERROR_BACKOFF",
	})

	app.Action = func() {
		logger.InitLogger(*appSystemCode, *logLevel)
		if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
			logrus.SetLevel(lvl)
		}

		cfg := config{
			appSystemCode:              *appSystemCode,
			appName:                    *appName,
			port:                       *port,
			logLevel:                   *logLevel,
			awsRegion:                  *awsRegion,
			sqsEndpoint:                *sqsEndpoint,
			ecsEndpoint:                *ecsEndpoint,
			snsEndpoint:                *snsEndpoint,
			queueURL:                   *queueURL,
			waitTime:                   *waitTime,
			visibilityTimeout:          *visibilityTimeout,
			taskDefinition:             *taskDefinition,
			cluster:                    *cluster,
			containerName:              *containerName,
			launchType:                 *launchType,
			securityGroups:             cleanList(*securityGroups),
			subnets:                    cleanList(*subnets),
			assignPublicIP:             *assignPublicIP,
			outputBucket:               *outputBucket,
			eventsTopicArn:             *eventsTopicArn,
			processTimeoutSeconds:      *processTimeout,
			receiveErrorBackoffSeconds: *receiveErrorBackoff,
		}
		if err := cfg.validate(); err != nil {
			logger.WithError(err).Error("Cannot start with the provided configuration")
			cli.Exit(1)
		}

		logger.Infof("[Startup] %s is starting with queue %s, cluster %s and task definition %s", cfg.appSystemCode, cfg.queueURL, cfg.cluster, cfg.taskDefinition)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := run(ctx, cfg); err != nil {
			logger.WithError(err).Error("Upload transcode dispatcher stopped with an error")
			cli.Exit(1)
		}
		logger.Infof("Upload transcode dispatcher stopped")
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Error("App could not start")
		return
	}
}

func run(ctx context.Context, cfg config) error {
	queue, err := sqs.NewClient(cfg.awsRegion, cfg.queueURL, cfg.sqsEndpoint, cfg.waitTime, cfg.visibilityTimeout, nil)
	if err != nil {
		return fmt.Errorf("creating sqs client: %w", err)
	}

	jobs, err := ecs.NewClient(cfg.awsRegion, cfg.ecsEndpoint, ecs.Target{
		TaskDefinition: cfg.taskDefinition,
		Cluster:        cfg.cluster,
		ContainerName:  cfg.containerName,
		LaunchType:     cfg.launchType,
		SecurityGroups: cfg.securityGroups,
		Subnets:        cfg.subnets,
		AssignPublicIP: cfg.assignPublicIP,
	}, ecs.JobConfig{
		OutputBucket: cfg.outputBucket,
		QueueURL:     cfg.queueURL,
	}, nil)
	if err != nil {
		return fmt.Errorf("creating ecs client: %w", err)
	}

	outputBucket, err := s3.NewClient(cfg.outputBucket, cfg.awsRegion)
	if err != nil {
		return fmt.Errorf("creating s3 client: %w", err)
	}

	var events sns.Client
	if cfg.eventsTopicArn != "" {
		if events, err = sns.NewClient(cfg.eventsTopicArn, cfg.snsEndpoint); err != nil {
			return fmt.Errorf("creating sns client: %w", err)
		}
	}

	dispatch.InitMetrics()
	service := dispatch.NewService(queue, jobs, events, dispatch.Config{
		ProcessTimeout:      time.Duration(cfg.processTimeoutSeconds) * time.Second,
		ReceiveErrorBackoff: time.Duration(cfg.receiveErrorBackoffSeconds) * time.Second,
	}, metrics.DefaultRegistry)

	checks := append(service.Healthchecks(), outputBucket.Healthcheck())
	health := dispatch.NewHealthService(cfg.appSystemCode, cfg.appName, appDescription, checks...)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.port),
		Handler:           dispatch.AdminHandler(health, metrics.DefaultRegistry, logrus.StandardLogger()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		service.ListenForNotifications(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Infof("Serving admin endpoints on port %d", cfg.port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
