// Package ses provides email notification services via AWS SES
package ses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	appConfig "rental-application-engine/internal/config"
	"rental-application-engine/internal/models"
	"rental-application-engine/internal/utils"
)

// EmailAPI is the subset of the SES client used by Service.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Service handles SES email operations
type Service struct {
	client       EmailAPI
	fromEmail    string
	replyTo      string
	configSet    string
	dashboardURL string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To        string
	Subject   string
	HTMLBody  string
	TextBody  string
	ReplyTo   string
	ConfigSet string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewServiceWithClient(ses.NewFromConfig(cfg), appCfg), nil
}

// NewServiceWithClient creates a service over an existing client.
func NewServiceWithClient(client EmailAPI, appCfg *appConfig.Config) *Service {
	return &Service{
		client:       client,
		fromEmail:    appCfg.SESSenderEmail,
		replyTo:      appCfg.SESReplyTo,
		configSet:    appCfg.SESConfiguration,
		dashboardURL: appCfg.DashboardURL,
	}
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	replyTo := params.ReplyTo
	if replyTo == "" {
		replyTo = s.replyTo
	}
	if replyTo != "" {
		input.ReplyToAddresses = []string{replyTo}
	}

	configSet := params.ConfigSet
	if configSet == "" {
		configSet = s.configSet
	}
	if configSet != "" {
		input.ConfigurationSetName = aws.String(configSet)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	utils.GetLogger().Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", messageID),
	)

	return &SendEmailResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// Send renders and sends a templated notification.
func (s *Service) Send(ctx context.Context, n models.Notification) error {
	vars := make(map[string]string, len(n.Variables)+2)
	for k, v := range n.Variables {
		vars[k] = v
	}
	vars["application_id"] = n.ApplicationID
	if s.dashboardURL != "" {
		vars["dashboard_url"] = strings.TrimRight(s.dashboardURL, "/") + "/applications/" + n.ApplicationID
	}

	tmpl, ok := emailTemplates[n.Template]
	if !ok {
		return fmt.Errorf("unknown email template %q", n.Template)
	}

	htmlBody, err := render(tmpl.html, vars)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	textBody, err := render(tmpl.text, vars)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	subject, err := render(tmpl.subject, vars)
	if err != nil {
		return fmt.Errorf("failed to render email subject: %w", err)
	}

	_, err = s.SendEmail(ctx, EmailParams{
		To:       n.Recipient,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	return err
}

// SendApplicationSubmitted confirms a submitted application to the applicant.
func (s *Service) SendApplicationSubmitted(ctx context.Context, applicationID, recipient string, property models.PropertySummary) error {
	return s.Send(ctx, models.Notification{
		ApplicationID: applicationID,
		Template:      models.TemplateApplicationSubmitted,
		Recipient:     recipient,
		Variables:     SubmittedVariables(property),
	})
}

// SendDocumentRejection tells the applicant a document was rejected by an agent.
func (s *Service) SendDocumentRejection(ctx context.Context, applicationID, recipient, documentKey, comment string) error {
	return s.Send(ctx, models.Notification{
		ApplicationID: applicationID,
		Template:      models.TemplateDocumentRejection,
		Recipient:     recipient,
		Variables: map[string]string{
			"document_name": models.DocumentTypeFromKey(documentKey).Label(),
			"comment":       comment,
		},
	})
}

// SubmittedVariables builds the template variables of the submission email.
func SubmittedVariables(property models.PropertySummary) map[string]string {
	return map[string]string{
		"property_title":    property.Title,
		"property_price":    fmt.Sprintf("%.0f", property.Price),
		"property_location": property.Location,
	}
}
