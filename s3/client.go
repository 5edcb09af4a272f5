package s3

import (
	"fmt"
	"net"
	"net/http"
	"time"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/go-logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Client checks the bucket transcoding jobs write their output to. The dispatcher never reads or
// writes objects itself.
type Client struct {
	s3         s3API
	bucketName string
}

type s3API interface {
	HeadBucket(input *s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
}

func NewClient(bucketName string, awsRegion string) (*Client, error) {
	hc := http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   20,
			TLSHandshakeTimeout:   3 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	sess, err := session.NewSession(
		&aws.Config{
			Region:     aws.String(awsRegion),
			MaxRetries: aws.Int(1),
			HTTPClient: &hc,
		})
	if err != nil {
		logger.WithError(err).Error("Unable to create an S3 client")
		return nil, err
	}

	credValues, err := sess.Config.Credentials.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain AWS credentials for values with error: %w, while creating s3 client", err)
	}
	logger.Infof("Obtaining AWS credentials by using [%s] as provider for s3 client", credValues.ProviderName)

	return &Client{
		s3:         s3.New(sess),
		bucketName: bucketName,
	}, nil
}

func (c *Client) Healthcheck() fthealth.Check {
	return fthealth.Check{
		ID:               "check-output-bucket",
		BusinessImpact:   "Transcoded videos cannot be stored, so transcoding jobs will fail",
		Name:             "Check connectivity to the S3 output bucket",
		PanicGuide:       "https://runbooks.in.ft.com/upload-transcode-dispatcher",
		Severity:         3,
		TechnicalSummary: `Cannot access the S3 bucket transcoding jobs write to. If this check fails, check that Amazon S3 is available and the bucket exists`,
		Checker: func() (string, error) {
			params := &s3.HeadBucketInput{
				Bucket: aws.String(c.bucketName), // Required
			}
			if _, err := c.s3.HeadBucket(params); err != nil {
				logger.WithError(err).Error("Got error running S3 health check")
				return "", err
			}
			return fmt.Sprintf("bucket %s is reachable", c.bucketName), nil
		},
	}
}
