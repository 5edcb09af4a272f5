package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	httpmock "gopkg.in/jarcoal/httpmock.v1"

	"github.com/Financial-Times/upload-transcode-dispatcher/ecs"
	"github.com/Financial-Times/upload-transcode-dispatcher/sqs"
)

type runTaskRequest struct {
	Cluster        string `json:"cluster"`
	TaskDefinition string `json:"taskDefinition"`
	LaunchType     string `json:"launchType"`
	Overrides      struct {
		ContainerOverrides []struct {
			Name        string `json:"name"`
			Environment []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"environment"`
		} `json:"containerOverrides"`
	} `json:"overrides"`
}

func TestListenForNotifications_RunsTaskOverHTTP(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_CA_BUNDLE", "")

	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	defer httpmock.DeactivateAndReset()

	var requests []runTaskRequest
	httpmock.RegisterResponder(http.MethodPost, "https://ecs.test.local/", func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		var r runTaskRequest
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, err
		}
		requests = append(requests, r)
		return httpmock.NewStringResponse(http.StatusOK, `{"tasks":[{"taskArn":"arn:aws:ecs:us-east-1:123456789012:task/videos-transcode-cluster/abc"}],"failures":[]}`), nil
	})

	jobs, err := ecs.NewClient("us-east-1", "https://ecs.test.local", ecs.Target{
		TaskDefinition: "videos-transcoder-task:2",
		Cluster:        "videos-transcode-cluster",
		ContainerName:  "video-transcoder",
		SecurityGroups: []string{"sg-1"},
		Subnets:        []string{"subnet-1", "subnet-2"},
		AssignPublicIP: true,
	}, ecs.JobConfig{OutputBucket: "videos-transcoded", QueueURL: testQueueURL}, hc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &fakeQueue{
		receives: []receiveResult{
			{messages: []sqs.Message{{ID: "m-1", ReceiptHandle: "r-1", Body: oneRecordBody}}},
		},
		cancel: cancel,
	}

	withoutRecoveredPanic(t, func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			NewService(queue, jobs, nil, Config{ProcessTimeout: 5 * time.Second}, nil).ListenForNotifications(ctx)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("listener did not stop")
		}
	})

	require.Len(t, requests, 1)
	assert.Equal(t, "videos-transcode-cluster", requests[0].Cluster)
	assert.Equal(t, "FARGATE", requests[0].LaunchType)
	require.Len(t, requests[0].Overrides.ContainerOverrides, 1)

	override := requests[0].Overrides.ContainerOverrides[0]
	assert.Equal(t, "video-transcoder", override.Name)
	environment := map[string]string{}
	for _, kv := range override.Environment {
		environment[kv.Name] = kv.Value
	}
	assert.Equal(t, "videos", environment["VIDEO_BUCKET"])
	assert.Equal(t, "a.mp4", environment["VIDEO_KEY"])
	assert.Equal(t, "videos-transcoded", environment["OUTPUT_BUCKET"])
	assert.Equal(t, testQueueURL, environment["SQS_QUEUE_URL"])
	assert.Equal(t, "r-1", environment["SQS_RECEIPT_HANDLE"])

	assert.Equal(t, []string{"r-1"}, queue.deleted)
}
