package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/arn"
	awsecs "github.com/aws/aws-sdk-go/service/ecs"

	"github.com/Financial-Times/upload-transcode-dispatcher/sqs"
)

var errInvalidConfig = errors.New("invalid configuration")

type config struct {
	appSystemCode string
	appName       string
	port          int
	logLevel      string

	awsRegion   string
	sqsEndpoint string
	ecsEndpoint string
	snsEndpoint string

	queueURL          string
	waitTime          int
	visibilityTimeout int

	taskDefinition string
	cluster        string
	containerName  string
	launchType     string
	securityGroups []string
	subnets        []string
	assignPublicIP bool

	outputBucket   string
	eventsTopicArn string

	processTimeoutSeconds      int
	receiveErrorBackoffSeconds int
}

// validate reports every problem at once so a misconfigured deployment fails on its first start.
func (c config) validate() error {
	var errs []error
	required := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	required("aws-region", c.awsRegion)
	required("sqs-queue-url", c.queueURL)
	required("ecs-task-definition", c.taskDefinition)
	required("ecs-cluster", c.cluster)
	required("ecs-container-name", c.containerName)
	required("output-bucket", c.outputBucket)

	if len(c.securityGroups) == 0 {
		errs = append(errs, errors.New("ecs-security-groups must list at least one security group"))
	}
	if len(c.subnets) == 0 {
		errs = append(errs, errors.New("ecs-subnets must list at least one subnet"))
	}

	switch c.launchType {
	case awsecs.LaunchTypeFargate:
	case awsecs.LaunchTypeEc2, awsecs.LaunchTypeExternal:
		if c.assignPublicIP {
			errs = append(errs, fmt.Errorf("ecs-assign-public-ip is only supported with the %s launch type", awsecs.LaunchTypeFargate))
		}
	default:
		errs = append(errs, fmt.Errorf("ecs-launch-type %q is not one of %s", c.launchType, strings.Join(awsecs.LaunchType_Values(), ", ")))
	}

	if c.waitTime < 0 || c.waitTime > sqs.MaxWaitTime {
		errs = append(errs, fmt.Errorf("sqs-wait-time must be between 0 and %d seconds, got %d", sqs.MaxWaitTime, c.waitTime))
	}
	if c.visibilityTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqs-visibility-timeout must not be negative, got %d", c.visibilityTimeout))
	}
	// A message must stay hidden for as long as it may be processed, or another worker dispatches it again.
	if c.visibilityTimeout > 0 && c.visibilityTimeout < c.processTimeoutSeconds {
		errs = append(errs, fmt.Errorf("sqs-visibility-timeout %d must not be shorter than process-timeout %d", c.visibilityTimeout, c.processTimeoutSeconds))
	}
	if c.port <= 0 || c.port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.port))
	}
	if c.processTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("process-timeout must be positive, got %d", c.processTimeoutSeconds))
	}
	if c.receiveErrorBackoffSeconds < 0 {
		errs = append(errs, fmt.Errorf("receive-error-backoff must not be negative, got %d", c.receiveErrorBackoffSeconds))
	}
	if c.eventsTopicArn != "" {
		if _, err := arn.Parse(c.eventsTopicArn); err != nil {
			errs = append(errs, fmt.Errorf("events-topic-arn: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errInvalidConfig, errors.Join(errs...))
}

// cleanList trims entries of a comma separated option and drops empty ones.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
