package notification

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Test markers. S3 sends "s3:TestEvent"; older consumers compared against "s3.TestEvent".
const (
	TestEventMarker       = "s3:TestEvent"
	LegacyTestEventMarker = "s3.TestEvent"
)

// Decode parses a queue message body. An empty body yields a nil Event and no error.
func Decode(body string) (Event, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	var probe testMessage
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil, &DecodeError{Reason: "malformed body", Err: err}
	}
	if probe.Service != nil && probe.Event != nil && isTestMarker(*probe.Event) {
		return TestEvent{Service: *probe.Service, Bucket: probe.Bucket}, nil
	}

	var msg changeMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, &DecodeError{Reason: "unexpected record format", Err: err}
	}
	if len(msg.Records) == 0 {
		return nil, &DecodeError{Reason: "no change records", Err: ErrNoRecords}
	}

	records := make([]ChangeRecord, 0, len(msg.Records))
	for i, r := range msg.Records {
		if r.S3.Bucket.Name == "" {
			return nil, &DecodeError{Reason: fmt.Sprintf("record %d", i), Err: ErrMissingBucket}
		}
		if r.S3.Object.Key == "" {
			return nil, &DecodeError{Reason: fmt.Sprintf("record %d", i), Err: ErrMissingKey}
		}
		records = append(records, ChangeRecord{
			EventName: r.EventName,
			Bucket:    r.S3.Bucket.Name,
			Key:       r.S3.Object.Key,
			Size:      r.S3.Object.Size,
		})
	}

	return ChangeNotification{Records: records}, nil
}

func isTestMarker(event string) bool {
	return event == TestEventMarker || event == LegacyTestEventMarker
}
