// internal/common/aws/ses.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the part of the SES client used for digests.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client    SESService
	fromEmail string
}

func NewSESClient(cfg aws.Config, fromEmail string) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg), fromEmail: fromEmail}
}

// NewSESClientWith wraps an existing SES implementation.
func NewSESClientWith(client SESService, fromEmail string) *SESClient {
	return &SESClient{client: client, fromEmail: fromEmail}
}

// SendHTML sends one email with an HTML body and a text fallback. It returns
// the SES message id.
func (s *SESClient) SendHTML(ctx context.Context, to []string, subject, html, text string) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.fromEmail),
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}
