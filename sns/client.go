package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/go-logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
)

// maxBatchEntries is the PublishBatch entry limit.
const maxBatchEntries = 10

type PublishAPI interface {
	PublishBatchWithContext(aws.Context, *sns.PublishBatchInput, ...request.Option) (*sns.PublishBatchOutput, error)
	GetTopicAttributes(*sns.GetTopicAttributesInput) (*sns.GetTopicAttributesOutput, error)
}

type Client interface {
	PublishEvents(context.Context, []Event) error
	Healthcheck() fthealth.Check
}

type client struct {
	sns      PublishAPI
	topicArn *string
}

func NewClient(topicArn, endpoint string) (Client, error) {
	tarn, err := arn.Parse(topicArn)
	if err != nil {
		return nil, fmt.Errorf("parsing topic arn: %w", err)
	}

	cfg := aws.NewConfig().WithRegion(tarn.Region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating new aws session: %w", err)
	}

	return &client{
		sns:      sns.New(sess),
		topicArn: &topicArn,
	}, nil
}

func (c *client) PublishEvents(ctx context.Context, events []Event) error {
	errs := []error{}
	for start := 0; start < len(events); start += maxBatchEntries {
		end := start + maxBatchEntries
		if end > len(events) {
			end = len(events)
		}
		if err := c.publishBatch(ctx, events[start:end], start); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *client) publishBatch(ctx context.Context, events []Event, offset int) error {
	entries := []*sns.PublishBatchRequestEntry{}

	for i, ev := range events {
		evData, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshaling event for %q: %w", ev.Key, err)
		}

		entry := &sns.PublishBatchRequestEntry{
			Id:      aws.String(ev.MessageID + "_" + strconv.Itoa(offset+i)),
			Message: aws.String(string(evData)),
		}

		entries = append(entries, entry)
	}

	output, err := c.sns.PublishBatchWithContext(ctx, &sns.PublishBatchInput{
		TopicArn:                   c.topicArn,
		PublishBatchRequestEntries: entries,
	})
	if err != nil {
		return err
	}

	errs := []error{}
	for _, o := range output.Failed {
		err := fmt.Errorf("publishing %s event failed: %s", *o.Id, *o.Code)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *client) Healthcheck() fthealth.Check {
	return fthealth.Check{
		ID:               "check-events-topic",
		BusinessImpact:   "Downstream systems will not be told that transcoding jobs have started",
		Name:             "Check connectivity to the dispatch events SNS topic",
		PanicGuide:       "https://runbooks.in.ft.com/upload-transcode-dispatcher",
		Severity:         3,
		TechnicalSummary: `Cannot read the attributes of the dispatch events SNS topic. Check that Amazon SNS is available and the topic exists`,
		Checker: func() (string, error) {
			if _, err := c.sns.GetTopicAttributes(&sns.GetTopicAttributesInput{TopicArn: c.topicArn}); err != nil {
				logger.WithError(err).Error("Got error running SNS health check")
				return "", err
			}
			return "", nil
		},
	}
}
