package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/logger"
	"github.com/oshokin/metadeploy/internal/service/common"
)

const emailActionPath = "actions/standard/emailSimple"

var (
	errNoRecipients = errors.New("at least one recipient is required")
	errNoSubject    = errors.New("subject is required")
	errNoResult     = errors.New("action returned no result")
)

// SessionProvider hands out a session the platform currently accepts.
type SessionProvider interface {
	EnsureSession(ctx context.Context) (deploy.Session, error)
}

// Email is one message to send.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Validate checks recipients and subject.
func (e Email) Validate() error {
	if len(e.To) == 0 {
		return errNoRecipients
	}

	for _, address := range e.To {
		if _, err := mail.ParseAddress(address); err != nil {
			return fmt.Errorf("recipient %q: %w", address, err)
		}
	}

	if strings.TrimSpace(e.Subject) == "" {
		return errNoSubject
	}

	return nil
}

// Result is the platform's answer for one email.
type Result struct {
	Success bool
	Errors  []string
}

// Notifier sends email.
type Notifier struct {
	sessions      SessionProvider
	clientOptions []common.Option
}

// New returns a Notifier. clientOptions configure the REST client.
func New(sessions SessionProvider, clientOptions ...common.Option) *Notifier {
	return &Notifier{
		sessions:      sessions,
		clientOptions: clientOptions,
	}
}

type actionRequest struct {
	Inputs []actionInput `json:"inputs"`
}

type actionInput struct {
	EmailAddresses string `json:"emailAddresses"`
	EmailSubject   string `json:"emailSubject"`
	EmailBody      string `json:"emailBody"`
}

type actionResult struct {
	ActionName string        `json:"actionName"`
	IsSuccess  bool          `json:"isSuccess"`
	Errors     []actionError `json:"errors"`
}

type actionError struct {
	StatusCode string `json:"statusCode"`
	Message    string `json:"message"`
}

// Send validates the message, ensures a session and invokes the action.
// A platform-side refusal comes back as a Result with Success unset.
func (n *Notifier) Send(ctx context.Context, email Email) (*Result, error) {
	if err := email.Validate(); err != nil {
		return nil, &deploy.ConfigError{Reason: "invalid email", Err: err}
	}

	session, err := n.sessions.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	client, err := common.NewClient(session, n.clientOptions...)
	if err != nil {
		return nil, err
	}

	request := actionRequest{
		Inputs: []actionInput{{
			EmailAddresses: strings.Join(email.To, ","),
			EmailSubject:   email.Subject,
			EmailBody:      email.Body,
		}},
	}

	var results []actionResult

	if err = client.PostJSON(ctx, client.DataURL(emailActionPath), request, &results); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	if len(results) == 0 {
		return nil, errNoResult
	}

	result := &Result{Success: results[0].IsSuccess}
	for _, e := range results[0].Errors {
		result.Errors = append(result.Errors, strings.TrimSpace(e.StatusCode+" "+e.Message))
	}

	logger.InfoKV(ctx, "Email sent", "recipients", len(email.To), "success", result.Success)

	return result, nil
}
