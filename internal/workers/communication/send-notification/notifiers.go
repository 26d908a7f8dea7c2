// internal/workers/communication/send-notification/notifiers.go
package sendnotification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	commonhttp "lending-workers/internal/common/http"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

// Notifier delivers one notification on one channel.
type Notifier interface {
	Send(ctx context.Context, input *Input) (messageID string, err error)
}

// SESService is the slice of the SES client the email notifier needs.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SNSService is the slice of the SNS client the SMS notifier needs.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// NewDispatcher wires one notifier per channel. Entries for unconfigured
// channels are omitted; dispatching to them fails at send time.
func NewDispatcher(cfg *Config, sesClient SESService, snsClient SNSService, httpClient *commonhttp.Client, log logger.Logger) map[models.NotificationChannel]Notifier {
	dispatch := map[models.NotificationChannel]Notifier{
		models.NotifyLog: &logNotifier{logger: log},
	}
	if sesClient != nil {
		dispatch[models.NotifyEmail] = &emailNotifier{ses: sesClient, from: cfg.EmailFrom}
	}
	if snsClient != nil {
		dispatch[models.NotifySMS] = &smsNotifier{sns: snsClient, senderID: cfg.SMSSenderID}
	}
	if httpClient != nil && cfg.MessagingEndpoint != "" {
		dispatch[models.NotifyMessaging] = &messagingNotifier{
			client:   httpClient,
			endpoint: cfg.MessagingEndpoint,
		}
	}
	return dispatch
}

// logNotifier is the always-available fallback channel.
type logNotifier struct {
	logger logger.Logger
}

func (n *logNotifier) Send(ctx context.Context, input *Input) (string, error) {
	n.logger.Info("notification", map[string]interface{}{
		"sessionId": input.SessionID,
		"subject":   input.Subject,
		"message":   input.Message,
		"data":      input.Data,
	})
	return uuid.New().String(), nil
}

type emailNotifier struct {
	ses  SESService
	from string
}

func (n *emailNotifier) Send(ctx context.Context, input *Input) (string, error) {
	if input.Recipient == "" {
		return "", fmt.Errorf("email notification requires a recipient")
	}
	out, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{input.Recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(input.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(input.Message)},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

type smsNotifier struct {
	sns      SNSService
	senderID string
}

func (n *smsNotifier) Send(ctx context.Context, input *Input) (string, error) {
	if input.Recipient == "" {
		return "", fmt.Errorf("sms notification requires a recipient")
	}
	out, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(input.Recipient),
		Message:     aws.String(input.Message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.senderID),
			},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// messagingNotifier posts to the chat platform's inbound webhook.
type messagingNotifier struct {
	client   *commonhttp.Client
	endpoint string
}

func (n *messagingNotifier) Send(ctx context.Context, input *Input) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"sessionId": input.SessionID,
		"message":   input.Message,
		"data":      input.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal messaging payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build messaging request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send messaging notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("messaging endpoint returned %d", resp.StatusCode)
	}
	return uuid.New().String(), nil
}
