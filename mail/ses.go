package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESSender sends mail through the AWS SES v2 API. Use this transport
// in production; it requires no per-SenderAccount SMTP credentials,
// only a from-address and region.
type SESSender struct {
	client      *sesv2.Client
	fromAddress string
}

// NewSESSender loads AWS credentials and region and constructs a
// SESSender. accessKey/secretKey may be empty to fall back to the
// default AWS credential chain (environment, instance role, etc.).
func NewSESSender(ctx context.Context, region, accessKey, secretKey, fromAddress string) (*SESSender, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(region))

	if accessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("mail: load aws config: %w", err)
	}

	return &SESSender{
		client:      sesv2.NewFromConfig(awsCfg),
		fromAddress: fromAddress,
	}, nil
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, recipient, subject, body string) (Result, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("mail: ses send: %w", err)
	}

	return Result{MessageID: aws.ToString(out.MessageId)}, nil
}
