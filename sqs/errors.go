package sqs

import (
	"errors"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// AckError reports a failed message deletion.
type AckError struct {
	ReceiptHandle string
	Err           error
}

func (e *AckError) Error() string {
	return "removing message from queue: " + e.Err.Error()
}

func (e *AckError) Unwrap() error {
	return e.Err
}

// Stale reports whether the receipt handle no longer identifies a live delivery,
// i.e. the message was already deleted or has been redelivered since.
func (e *AckError) Stale() bool {
	var aerr awserr.Error
	if !errors.As(e.Err, &aerr) {
		return false
	}
	return aerr.Code() == sqs.ErrCodeReceiptHandleIsInvalid || aerr.Code() == "InvalidParameterValue"
}
