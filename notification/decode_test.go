package notification

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	tests := map[string]struct {
		body    string
		want    Event
		wantErr error
	}{
		"TestEvent": {
			body: `{"Service":"Amazon S3","Event":"s3:TestEvent","Time":"2024-01-01T00:00:00.000Z","Bucket":"videos"}`,
			want: TestEvent{Service: "Amazon S3", Bucket: "videos"},
		},
		"LegacyTestEventMarker": {
			body: `{"Service":"s3","Event":"s3.TestEvent"}`,
			want: TestEvent{Service: "s3"},
		},
		"SingleRecord": {
			body: `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"videos"},"object":{"key":"a.mp4","size":1024}}}]}`,
			want: ChangeNotification{Records: []ChangeRecord{
				{EventName: "ObjectCreated:Put", Bucket: "videos", Key: "a.mp4", Size: 1024},
			}},
		},
		"RecordsKeepOrder": {
			body: `{"Records":[{"s3":{"bucket":{"name":"videos"},"object":{"key":"b.mp4"}}},{"s3":{"bucket":{"name":"videos"},"object":{"key":"a.mp4"}}}]}`,
			want: ChangeNotification{Records: []ChangeRecord{
				{Bucket: "videos", Key: "b.mp4"},
				{Bucket: "videos", Key: "a.mp4"},
			}},
		},
		"KeyIsNotUnescaped": {
			body: `{"Records":[{"s3":{"bucket":{"name":"videos"},"object":{"key":"my+holiday%281%29.mp4"}}}]}`,
			want: ChangeNotification{Records: []ChangeRecord{
				{Bucket: "videos", Key: "my+holiday%281%29.mp4"},
			}},
		},
		"NonTestServiceEventFallsThroughToRecords": {
			body: `{"Service":"Amazon S3","Event":"s3:ObjectCreated:Put","Records":[{"s3":{"bucket":{"name":"videos"},"object":{"key":"a.mp4"}}}]}`,
			want: ChangeNotification{Records: []ChangeRecord{
				{Bucket: "videos", Key: "a.mp4"},
			}},
		},
		"EmptyBody": {
			body: "",
		},
		"WhitespaceBody": {
			body: " \n\t",
		},
		"MalformedJSON": {
			body:    `{"Records":`,
			wantErr: &DecodeError{},
		},
		"NotAnObject": {
			body:    `["videos","a.mp4"]`,
			wantErr: &DecodeError{},
		},
		"NoRecords": {
			body:    `{"Records":[]}`,
			wantErr: ErrNoRecords,
		},
		"NullBody": {
			body:    `null`,
			wantErr: ErrNoRecords,
		},
		"ServiceWithoutEvent": {
			body:    `{"Service":"Amazon S3"}`,
			wantErr: ErrNoRecords,
		},
		"MissingBucket": {
			body:    `{"Records":[{"s3":{"bucket":{},"object":{"key":"a.mp4"}}}]}`,
			wantErr: ErrMissingBucket,
		},
		"MissingKeyInSecondRecord": {
			body:    `{"Records":[{"s3":{"bucket":{"name":"videos"},"object":{"key":"a.mp4"}}},{"s3":{"bucket":{"name":"videos"},"object":{}}}]}`,
			wantErr: ErrMissingKey,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(test.body)
			if test.wantErr != nil {
				if err == nil {
					t.Fatalf("want: %v, got: nil", test.wantErr)
				}
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("want a *DecodeError, got: %T", err)
				}
				if _, isDecodeErr := test.wantErr.(*DecodeError); !isDecodeErr && !errors.Is(err, test.wantErr) {
					t.Fatalf("want: %v, got: %v", test.wantErr, err)
				}
				if got != nil {
					t.Fatalf("expected no event alongside an error, got: %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("did not expect err, got: %s", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeError_Error(t *testing.T) {
	err := &DecodeError{Reason: "record 1", Err: ErrMissingKey}
	if got, want := err.Error(), "decoding notification: record 1: record has no object key"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if !errors.Is(err, ErrMissingKey) {
		t.Error("expected DecodeError to unwrap to ErrMissingKey")
	}
}
