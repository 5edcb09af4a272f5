package ecs

// Job environment contract shared with the transcoder container.
const (
	EnvVideoBucket   = "VIDEO_BUCKET"
	EnvVideoKey      = "VIDEO_KEY"
	EnvOutputBucket  = "OUTPUT_BUCKET"
	EnvQueueURL      = "SQS_QUEUE_URL"
	EnvReceiptHandle = "SQS_RECEIPT_HANDLE"
	EnvMessageID     = "SQS_MESSAGE_ID"
	EnvTransactionID = "TRANSACTION_ID"
)

// Target identifies where and how transcoding tasks run.
type Target struct {
	TaskDefinition string
	Cluster        string
	ContainerName  string
	LaunchType     string
	SecurityGroups []string
	Subnets        []string
	AssignPublicIP bool
}

// JobConfig is static input passed to every job.
type JobConfig struct {
	OutputBucket string
	QueueURL     string
}

// JobRequest describes one transcoding job for one uploaded object. ReceiptHandle lets the job
// acknowledge its triggering message itself.
type JobRequest struct {
	Bucket        string
	Key           string
	MessageID     string
	ReceiptHandle string
	TransactionID string
}

type JobHandle struct {
	TaskArn string
}

const DefaultLaunchType = "FARGATE"
