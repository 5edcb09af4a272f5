package ecs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecs"
)

// ErrNoTaskStarted is returned when RunTask succeeds at the API level but reports failures
// instead of a started task, e.g. when there is no capacity.
var ErrNoTaskStarted = errors.New("no task started")

// DispatchError reports a job the execution backend refused or could not be asked to run.
type DispatchError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatching job for s3://%s/%s: %s", e.Bucket, e.Key, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func failuresError(failures []*ecs.Failure) error {
	if len(failures) == 0 {
		return ErrNoTaskStarted
	}
	reasons := make([]string, 0, len(failures))
	for _, f := range failures {
		reason := fmt.Sprintf("%s (%s)", aws.StringValue(f.Reason), aws.StringValue(f.Arn))
		if d := aws.StringValue(f.Detail); d != "" {
			reason += ": " + d
		}
		reasons = append(reasons, reason)
	}
	return fmt.Errorf("%w: %s", ErrNoTaskStarted, strings.Join(reasons, "; "))
}
