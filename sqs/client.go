package sqs

import (
	"context"
	"fmt"
	"net/http"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/go-logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// MaxWaitTime is the longest long-poll SQS accepts.
const MaxWaitTime = 20

type Client interface {
	ReceiveMessages(ctx context.Context) ([]Message, error)
	RemoveMessageFromQueue(ctx context.Context, receiptHandle string) error
	QueueURL() string
	Healthcheck() fthealth.Check
}

type sqsAPI interface {
	ReceiveMessageWithContext(ctx aws.Context, input *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageWithContext(ctx aws.Context, input *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(input *sqs.GetQueueAttributesInput) (*sqs.GetQueueAttributesOutput, error)
}

type NotificationClient struct {
	sqs          sqsAPI
	listenParams sqs.ReceiveMessageInput
	queueUrl     string
}

// NewClient builds a client that receives at most one message per call, long-polling for waitTime
// seconds. A visibilityTimeout of 0 keeps the queue's own setting.
func NewClient(awsRegion, queueURL, endpoint string, waitTime, visibilityTimeout int, httpClient *http.Client) (*NotificationClient, error) {
	listenParams := sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		WaitTimeSeconds:     aws.Int64(int64(waitTime)),
	}
	if visibilityTimeout > 0 {
		listenParams.VisibilityTimeout = aws.Int64(int64(visibilityTimeout))
	}

	conf := &aws.Config{
		Region:     aws.String(awsRegion),
		MaxRetries: aws.Int(3),
	}
	if endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
	}
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		logger.WithError(err).Error("Unable to create an SQS client")
		return nil, err
	}
	credValues, err := sess.Config.Credentials.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain AWS credentials for values with error: %w, while creating sqs client", err)
	}
	logger.Infof("Obtaining AWS credentials by using [%s] as provider for sqs client", credValues.ProviderName)

	return &NotificationClient{
		sqs:          sqs.New(sess),
		listenParams: listenParams,
		queueUrl:     queueURL,
	}, nil
}

func (c *NotificationClient) ReceiveMessages(ctx context.Context) ([]Message, error) {
	out, err := c.sqs.ReceiveMessageWithContext(ctx, &c.listenParams)
	if err != nil {
		return nil, fmt.Errorf("receiving messages: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            aws.StringValue(m.MessageId),
			ReceiptHandle: aws.StringValue(m.ReceiptHandle),
			Body:          aws.StringValue(m.Body),
		})
	}
	return messages, nil
}

func (c *NotificationClient) RemoveMessageFromQueue(ctx context.Context, receiptHandle string) error {
	deleteParams := sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueUrl),
		ReceiptHandle: aws.String(receiptHandle),
	}
	if _, err := c.sqs.DeleteMessageWithContext(ctx, &deleteParams); err != nil {
		return &AckError{ReceiptHandle: receiptHandle, Err: err}
	}
	return nil
}

func (c *NotificationClient) QueueURL() string {
	return c.queueUrl
}

func (c *NotificationClient) Healthcheck() fthealth.Check {
	return fthealth.Check{
		ID:               "check-sqs-queue",
		BusinessImpact:   "Uploaded videos will not be transcoded",
		Name:             "Check connectivity to SQS queue",
		PanicGuide:       "https://runbooks.in.ft.com/upload-transcode-dispatcher",
		Severity:         2,
		TechnicalSummary: `Cannot connect to the upload notifications SQS queue. If this check fails, check that Amazon SQS is available and the queue URL is correct`,
		Checker: func() (string, error) {
			params := &sqs.GetQueueAttributesInput{
				QueueUrl:       aws.String(c.queueUrl),
				AttributeNames: []*string{aws.String(sqs.QueueAttributeNameApproximateNumberOfMessages)},
			}
			out, err := c.sqs.GetQueueAttributes(params)
			if err != nil {
				logger.WithError(err).Error("Got error running SQS health check")
				return "", err
			}
			return fmt.Sprintf("%s messages waiting", aws.StringValue(out.Attributes[sqs.QueueAttributeNameApproximateNumberOfMessages])), nil
		},
	}
}
