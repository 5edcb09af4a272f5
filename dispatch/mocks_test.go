package dispatch

import (
	"context"
	"sync"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/stretchr/testify/mock"

	"github.com/Financial-Times/upload-transcode-dispatcher/ecs"
	"github.com/Financial-Times/upload-transcode-dispatcher/sns"
	"github.com/Financial-Times/upload-transcode-dispatcher/sqs"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/upload-notifications"

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) ReceiveMessages(ctx context.Context) ([]sqs.Message, error) {
	args := m.Called(ctx)
	messages, _ := args.Get(0).([]sqs.Message)
	return messages, args.Error(1)
}

func (m *mockQueue) RemoveMessageFromQueue(ctx context.Context, receiptHandle string) error {
	return m.Called(ctx, receiptHandle).Error(0)
}

func (m *mockQueue) QueueURL() string {
	return testQueueURL
}

func (m *mockQueue) Healthcheck() fthealth.Check {
	return fthealth.Check{
		Name: "queue",
		Checker: func() (string, error) {
			return "", nil
		},
	}
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) RunJob(ctx context.Context, job ecs.JobRequest) (ecs.JobHandle, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(ecs.JobHandle), args.Error(1)
}

func (m *mockDispatcher) Healthcheck() fthealth.Check {
	return fthealth.Check{
		Name: "dispatcher",
		Checker: func() (string, error) {
			return "", nil
		},
	}
}

type mockEventsClient struct {
	mock.Mock
}

func (m *mockEventsClient) PublishEvents(ctx context.Context, events []sns.Event) error {
	return m.Called(ctx, events).Error(0)
}

func (m *mockEventsClient) Healthcheck() fthealth.Check {
	return fthealth.Check{
		Name: "events",
		Checker: func() (string, error) {
			return "", nil
		},
	}
}

// fakeQueue hands out one scripted receive result per call and cancels the listener once the
// script is exhausted.
type fakeQueue struct {
	mu       sync.Mutex
	receives []receiveResult
	calls    int
	deleted  []string
	cancel   context.CancelFunc
}

type receiveResult struct {
	messages []sqs.Message
	err      error
}

func (q *fakeQueue) ReceiveMessages(ctx context.Context) ([]sqs.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if len(q.receives) == 0 {
		q.cancel()
		return nil, ctx.Err()
	}
	r := q.receives[0]
	q.receives = q.receives[1:]
	return r.messages, r.err
}

func (q *fakeQueue) RemoveMessageFromQueue(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *fakeQueue) QueueURL() string {
	return testQueueURL
}

func (q *fakeQueue) Healthcheck() fthealth.Check {
	return fthealth.Check{}
}
