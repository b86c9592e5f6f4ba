// The contact-form-lambda binary is the function the contact-form command
// deploys. It receives form submissions through an API Gateway HTTP API and
// forwards them by email via SES.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/di"
)

// Submission is the request body the form posts.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Validate checks the fields the email template interpolates.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(s.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(s.Message) == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// EmailSender is the subset of the SES client the handler uses.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Handler struct {
	sender EmailSender
	from   string
	to     string
}

func NewHandler(sender EmailSender, from, to string) *Handler {
	return &Handler{sender: sender, from: from, to: to}
}

func (h *Handler) HandleRequest(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger := zerolog.Ctx(ctx)

	var submission Submission
	if err := json.Unmarshal([]byte(request.Body), &submission); err != nil {
		return respond(http.StatusBadRequest, "invalid request body"), nil
	}
	if err := submission.Validate(); err != nil {
		return respond(http.StatusBadRequest, err.Error()), nil
	}

	if _, err := h.sender.SendEmail(ctx, h.emailInput(submission)); err != nil {
		logger.Error().Err(err).Msg("Failed to send email")
		return respond(http.StatusInternalServerError, "failed to deliver message"), nil
	}

	logger.Info().Str("from", submission.Email).Msg("Contact form delivered")
	return respond(http.StatusOK, "message sent"), nil
}

func (h *Handler) emailInput(submission Submission) *sesv2.SendEmailInput {
	subject := fmt.Sprintf("Contact form: %s", submission.Name)
	body := fmt.Sprintf("From: %s <%s>\n\n%s", submission.Name, submission.Email, submission.Message)

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(h.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{h.to},
		},
		ReplyToAddresses: []string{submission.Email},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	}
}

func respond(status int, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]string{"message": message})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	from := os.Getenv("FROM_EMAIL")
	to := os.Getenv("TO_EMAIL")
	region := os.Getenv("SES_REGION")
	if from == "" || to == "" {
		logger.Fatal().Msg("FROM_EMAIL and TO_EMAIL are required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	handler := NewHandler(sesv2.NewFromConfig(cfg), from, to)
	lambda.StartWithOptions(handler.HandleRequest, lambda.WithContext(ctx))
}
