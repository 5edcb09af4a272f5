package ecs

import (
	"context"
	"fmt"
	"net/http"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/go-logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecs"
)

// maxStartedByLength is the longest StartedBy value RunTask accepts.
const maxStartedByLength = 36

type Dispatcher interface {
	RunJob(ctx context.Context, job JobRequest) (JobHandle, error)
	Healthcheck() fthealth.Check
}

type ecsAPI interface {
	RunTaskWithContext(ctx aws.Context, input *ecs.RunTaskInput, opts ...request.Option) (*ecs.RunTaskOutput, error)
	DescribeClusters(input *ecs.DescribeClustersInput) (*ecs.DescribeClustersOutput, error)
}

type Client struct {
	ecs    ecsAPI
	target Target
	config JobConfig
}

func NewClient(awsRegion, endpoint string, target Target, config JobConfig, httpClient *http.Client) (*Client, error) {
	conf := &aws.Config{
		Region:     aws.String(awsRegion),
		MaxRetries: aws.Int(3),
	}
	if endpoint != "" {
		conf.Endpoint = aws.String(endpoint)
	}
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		logger.WithError(err).Error("Unable to create an ECS client")
		return nil, err
	}
	credValues, err := sess.Config.Credentials.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain AWS credentials for values with error: %w, while creating ecs client", err)
	}
	logger.Infof("Obtaining AWS credentials by using [%s] as provider for ecs client", credValues.ProviderName)

	if target.LaunchType == "" {
		target.LaunchType = DefaultLaunchType
	}

	return &Client{
		ecs:    ecs.New(sess),
		target: target,
		config: config,
	}, nil
}

// RunJob starts one transcoding task for job. It does not retry beyond the SDK's request retries.
func (c *Client) RunJob(ctx context.Context, job JobRequest) (JobHandle, error) {
	out, err := c.ecs.RunTaskWithContext(ctx, c.runTaskInput(job))
	if err != nil {
		return JobHandle{}, &DispatchError{Bucket: job.Bucket, Key: job.Key, Err: err}
	}
	if len(out.Tasks) == 0 {
		return JobHandle{}, &DispatchError{Bucket: job.Bucket, Key: job.Key, Err: failuresError(out.Failures)}
	}
	return JobHandle{TaskArn: aws.StringValue(out.Tasks[0].TaskArn)}, nil
}

func (c *Client) runTaskInput(job JobRequest) *ecs.RunTaskInput {
	assignPublicIP := ecs.AssignPublicIpDisabled
	if c.target.AssignPublicIP {
		assignPublicIP = ecs.AssignPublicIpEnabled
	}

	input := &ecs.RunTaskInput{
		TaskDefinition: aws.String(c.target.TaskDefinition),
		Cluster:        aws.String(c.target.Cluster),
		LaunchType:     aws.String(c.target.LaunchType),
		Count:          aws.Int64(1),
		NetworkConfiguration: &ecs.NetworkConfiguration{
			AwsvpcConfiguration: &ecs.AwsVpcConfiguration{
				SecurityGroups: aws.StringSlice(c.target.SecurityGroups),
				Subnets:        aws.StringSlice(c.target.Subnets),
				AssignPublicIp: aws.String(assignPublicIP),
			},
		},
		Overrides: &ecs.TaskOverride{
			ContainerOverrides: []*ecs.ContainerOverride{
				{
					Name: aws.String(c.target.ContainerName),
					Environment: []*ecs.KeyValuePair{
						env(EnvVideoBucket, job.Bucket),
						env(EnvVideoKey, job.Key),
						env(EnvOutputBucket, c.config.OutputBucket),
						env(EnvQueueURL, c.config.QueueURL),
						env(EnvReceiptHandle, job.ReceiptHandle),
						env(EnvMessageID, job.MessageID),
						env(EnvTransactionID, job.TransactionID),
					},
				},
			},
		},
	}
	if job.MessageID != "" {
		startedBy := job.MessageID
		if len(startedBy) > maxStartedByLength {
			startedBy = startedBy[:maxStartedByLength]
		}
		input.StartedBy = aws.String(startedBy)
	}
	return input
}

func env(name, value string) *ecs.KeyValuePair {
	return &ecs.KeyValuePair{Name: aws.String(name), Value: aws.String(value)}
}

func (c *Client) Healthcheck() fthealth.Check {
	return fthealth.Check{
		ID:               "check-ecs-cluster",
		BusinessImpact:   "Uploaded videos will not be transcoded",
		Name:             "Check ECS transcoding cluster is active",
		PanicGuide:       "https://runbooks.in.ft.com/upload-transcode-dispatcher",
		Severity:         2,
		TechnicalSummary: `Cannot describe the ECS cluster that runs transcoding tasks, or it is not ACTIVE. Check that Amazon ECS is available and the cluster exists`,
		Checker: func() (string, error) {
			out, err := c.ecs.DescribeClusters(&ecs.DescribeClustersInput{
				Clusters: []*string{aws.String(c.target.Cluster)},
			})
			if err != nil {
				logger.WithError(err).Error("Got error running ECS health check")
				return "", err
			}
			if len(out.Clusters) == 0 {
				return "", fmt.Errorf("cluster %s not found", c.target.Cluster)
			}
			status := aws.StringValue(out.Clusters[0].Status)
			if status != "ACTIVE" {
				return "", fmt.Errorf("cluster %s is %s", c.target.Cluster, status)
			}
			return fmt.Sprintf("cluster %s is %s", c.target.Cluster, status), nil
		},
	}
}
