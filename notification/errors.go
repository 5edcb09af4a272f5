package notification

import "errors"

var (
	ErrNoRecords     = errors.New("notification has no records")
	ErrMissingBucket = errors.New("record has no bucket name")
	ErrMissingKey    = errors.New("record has no object key")
)

// DecodeError reports a message body that cannot be turned into an Event.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decoding notification: " + e.Reason
	}
	return "decoding notification: " + e.Reason + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
