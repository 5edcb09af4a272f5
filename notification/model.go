package notification

import "github.com/aws/aws-lambda-go/events"

// Event is either a TestEvent or a ChangeNotification.
type Event interface {
	isEvent()
}

// TestEvent is the synthetic notification S3 sends when a bucket notification is configured.
type TestEvent struct {
	Service string
	Bucket  string
}

// ChangeNotification holds the records of one storage notification in the order they were received.
type ChangeNotification struct {
	Records []ChangeRecord
}

type ChangeRecord struct {
	EventName string
	Bucket    string
	Key       string
	Size      int64
}

func (TestEvent) isEvent()          {}
func (ChangeNotification) isEvent() {}

// SQS Message Format
type testMessage struct {
	Service *string `json:"Service"`
	Event   *string `json:"Event"`
	Bucket  string  `json:"Bucket"`
}

type changeMessage struct {
	Records []events.S3EventRecord `json:"Records"`
}
