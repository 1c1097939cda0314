package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/riskgate/internal/models"
)

// Escalation describes a verdict that needs an administrator.
type Escalation struct {
	AccountID   string
	Username    string
	DetectionID string
	IPAddress   string
	Location    string
	Verdict     models.Verdict
	At          time.Time
}

// EscalationNotifier alerts administrators about escalated verdicts.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, e Escalation) error
}

// NoopNotifier drops every escalation.
type NoopNotifier struct{}

func (NoopNotifier) NotifyEscalation(context.Context, Escalation) error { return nil }

// sesSender is the part of the SES client the notifier uses
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails escalations using AWS SES
type SESNotifier struct {
	client      sesSender
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESNotifier creates a notifier from the default AWS credential chain
func NewSESNotifier(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESNotifier(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

func newSESNotifier(client sesSender, fromAddress string, recipients []string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

// NotifyEscalation sends one email per escalation to all recipients
func (n *SESNotifier) NotifyEscalation(ctx context.Context, e Escalation) error {
	subject := fmt.Sprintf("[riskgate] %s risk login for %s", strings.ToUpper(string(e.Verdict.Tier)), e.Username)

	var b strings.Builder
	fmt.Fprintf(&b, "A login attempt requires administrator review.\n\n")
	fmt.Fprintf(&b, "Account:    %s (%s)\n", e.Username, e.AccountID)
	fmt.Fprintf(&b, "Detection:  %s\n", e.DetectionID)
	fmt.Fprintf(&b, "Tier:       %s\n", e.Verdict.Tier)
	fmt.Fprintf(&b, "Action:     %s\n", e.Verdict.Action)
	fmt.Fprintf(&b, "Score:      %.4f\n", e.Verdict.Score)
	fmt.Fprintf(&b, "Origin:     %s\n", e.IPAddress)
	if e.Location != "" {
		fmt.Fprintf(&b, "Location:   %s\n", e.Location)
	}
	fmt.Fprintf(&b, "Time (UTC): %s\n", e.At.UTC().Format(time.RFC3339))
	if e.Verdict.Detail != "" {
		fmt.Fprintf(&b, "\nDetail: %s\n", e.Verdict.Detail)
	}
	if e.Verdict.AutoBlock {
		fmt.Fprintf(&b, "\nThe account was blocked automatically.\n")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(b.String())},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send escalation email via SES",
			slog.String("detection_id", e.DetectionID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("escalation email sent",
		slog.String("detection_id", e.DetectionID),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
