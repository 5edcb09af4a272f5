package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	logger "github.com/Financial-Times/go-logger"
	transactionidutils "github.com/Financial-Times/transactionid-utils-go"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/Financial-Times/upload-transcode-dispatcher/ecs"
	"github.com/Financial-Times/upload-transcode-dispatcher/notification"
	"github.com/Financial-Times/upload-transcode-dispatcher/sns"
	"github.com/Financial-Times/upload-transcode-dispatcher/sqs"
)

const (
	defaultProcessTimeout      = 60 * time.Second
	defaultReceiveErrorBackoff = 5 * time.Second
)

type Config struct {
	// ProcessTimeout bounds the handling of one message, dispatch and acknowledgement included.
	ProcessTimeout time.Duration
	// ReceiveErrorBackoff is how long to wait before polling again after a failed receive.
	ReceiveErrorBackoff time.Duration
}

// Service polls the upload notifications queue and starts one transcoding job per uploaded object.
// A message is deleted only once every job derived from it has been started; anything else leaves
// it on the queue to be redelivered.
type Service struct {
	queue         sqs.Client
	jobs          ecs.Dispatcher
	events        sns.Client
	config        Config
	dispatchTimer metrics.Timer
}

// NewService wires the worker. events may be nil, in which case no dispatch events are published.
func NewService(queue sqs.Client, jobs ecs.Dispatcher, events sns.Client, config Config, registry metrics.Registry) *Service {
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = defaultProcessTimeout
	}
	if config.ReceiveErrorBackoff <= 0 {
		config.ReceiveErrorBackoff = defaultReceiveErrorBackoff
	}
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &Service{
		queue:         queue,
		jobs:          jobs,
		events:        events,
		config:        config,
		dispatchTimer: metrics.GetOrRegisterTimer("dispatch.run_job", registry),
	}
}

// ListenForNotifications polls until ctx is cancelled. Cancellation is observed between messages
// and while waiting on the queue; a message already being processed is finished first.
func (s *Service) ListenForNotifications(ctx context.Context) {
	logger.Infof("Listening for upload notifications on %s", s.queue.QueueURL())
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Stopped listening for upload notifications")
			return
		default:
		}

		messages, err := s.queue.ReceiveMessages(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			receiveErrorsTotal.Inc()
			logger.WithError(err).Error("Error whilst listening for messages")
			sleep(ctx, s.config.ReceiveErrorBackoff)
			continue
		}
		if len(messages) == 0 {
			logger.WithField("queue", s.queue.QueueURL()).Debug("No messages in the queue")
			continue
		}

		for _, msg := range messages {
			s.processMessage(ctx, msg)
		}
	}
}

// processMessage is the failure boundary of one iteration: nothing escapes it, panics included.
func (s *Service) processMessage(ctx context.Context, msg sqs.Message) {
	messagesReceivedTotal.Inc()
	tid := transactionidutils.NewTransactionID()

	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ProcessTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			messagesProcessedTotal.WithLabelValues(outcomeFailed, "panic").Inc()
			logger.WithTransactionID(tid).WithField("message_id", msg.ID).WithField("panic", r).Error("Recovered from panic while processing message, leaving it for redelivery")
		}
	}()

	if err := s.ProcessMessage(processCtx, tid, msg); err != nil {
		messagesProcessedTotal.WithLabelValues(outcomeFailed, failureStage(err)).Inc()
		logger.WithError(err).WithTransactionID(tid).WithField("message_id", msg.ID).Error("Error processing message, leaving it for redelivery")
	}
}

// ProcessMessage decodes msg, starts its jobs and acknowledges it.
func (s *Service) ProcessMessage(ctx context.Context, transactionID string, msg sqs.Message) error {
	event, err := notification.Decode(msg.Body)
	if err != nil {
		return err
	}

	switch ev := event.(type) {
	case nil:
		messagesProcessedTotal.WithLabelValues(outcomeSkipped, "").Inc()
		logger.WithTransactionID(transactionID).WithField("message_id", msg.ID).Warn("Message has no body, skipping")
		return nil
	case notification.TestEvent:
		logger.WithTransactionID(transactionID).WithField("message_id", msg.ID).WithField("bucket", ev.Bucket).Info("Received test notification, removing it from the queue")
		if err := s.acknowledge(ctx, transactionID, msg); err != nil {
			return err
		}
		messagesProcessedTotal.WithLabelValues(outcomeTestEvent, "").Inc()
		return nil
	case notification.ChangeNotification:
		return s.dispatchRecords(ctx, transactionID, msg, ev.Records)
	default:
		return fmt.Errorf("unsupported notification %T", event)
	}
}

func (s *Service) dispatchRecords(ctx context.Context, transactionID string, msg sqs.Message, records []notification.ChangeRecord) error {
	dispatched := make([]sns.Event, 0, len(records))
	for i, record := range records {
		start := time.Now()
		handle, err := s.jobs.RunJob(ctx, ecs.JobRequest{
			Bucket:        record.Bucket,
			Key:           record.Key,
			MessageID:     msg.ID,
			ReceiptHandle: msg.ReceiptHandle,
			TransactionID: transactionID,
		})
		s.dispatchTimer.UpdateSince(start)
		if err != nil {
			jobsDispatchedTotal.WithLabelValues("failure").Inc()
			return fmt.Errorf("record %d of %d: %w", i+1, len(records), err)
		}
		jobsDispatchedTotal.WithLabelValues("success").Inc()
		logger.WithTransactionID(transactionID).
			WithField("message_id", msg.ID).
			WithField("bucket", record.Bucket).
			WithField("key", record.Key).
			WithField("task_arn", handle.TaskArn).
			Info("Started transcoding task")

		dispatched = append(dispatched, sns.Event{
			Type:          sns.EventTypeJobDispatched,
			Bucket:        record.Bucket,
			Key:           record.Key,
			TaskArn:       handle.TaskArn,
			MessageID:     msg.ID,
			TransactionID: transactionID,
		})
	}

	if err := s.acknowledge(ctx, transactionID, msg); err != nil {
		return err
	}
	messagesProcessedTotal.WithLabelValues(outcomeDispatched, "").Inc()
	s.publish(ctx, transactionID, dispatched)
	return nil
}

func (s *Service) acknowledge(ctx context.Context, transactionID string, msg sqs.Message) error {
	if err := s.queue.RemoveMessageFromQueue(ctx, msg.ReceiptHandle); err != nil {
		messagesAcknowledgedTotal.WithLabelValues("failure").Inc()
		var ackErr *sqs.AckError
		if errors.As(err, &ackErr) && ackErr.Stale() {
			logger.WithTransactionID(transactionID).WithField("message_id", msg.ID).Warn("Receipt handle is stale, the message was already removed or redelivered")
		}
		return err
	}
	messagesAcknowledgedTotal.WithLabelValues("success").Inc()
	logger.WithTransactionID(transactionID).WithField("message_id", msg.ID).Debug("Removed message from queue")
	return nil
}

// publish announces started jobs. The message is already acknowledged, so failures are only logged.
func (s *Service) publish(ctx context.Context, transactionID string, events []sns.Event) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.PublishEvents(ctx, events); err != nil {
		logger.WithError(err).WithTransactionID(transactionID).Error("Unable to publish dispatch events")
	}
}

func (s *Service) Healthchecks() []fthealth.Check {
	checks := []fthealth.Check{s.queue.Healthcheck(), s.jobs.Healthcheck()}
	if s.events != nil {
		checks = append(checks, s.events.Healthcheck())
	}
	return checks
}

func failureStage(err error) string {
	var (
		decodeErr   *notification.DecodeError
		dispatchErr *ecs.DispatchError
		ackErr      *sqs.AckError
	)
	switch {
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &dispatchErr):
		return "dispatch"
	case errors.As(err, &ackErr):
		return "acknowledge"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
