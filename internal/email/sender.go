// Package email sends transactional mail through SESv2.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/storekite/checkout-core/internal/aws"
)

// Sender sends HTML emails from a fixed sender address.
type Sender struct {
	client aws.SESAPI
	from   string
}

// NewSender returns a Sender bound to a verified from address.
func NewSender(client aws.SESAPI, from string) *Sender {
	return &Sender{client: client, from: from}
}

// Send delivers one HTML email.
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: &s.from,
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: &subject},
				Body: &sestypes.Body{
					Html: &sestypes.Content{Data: &htmlBody},
				},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
