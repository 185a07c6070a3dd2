package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/linkwave/portal/internal/accounts"
)

// EmailSender delivers a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// AccountLister lists every portal account.
type AccountLister interface {
	List(ctx context.Context) ([]accounts.Account, error)
}

// NotifyHandlers processes notification tasks.
type NotifyHandlers struct {
	Email    EmailSender
	SMS      SMSSender
	Accounts AccountLister
	Logger   *slog.Logger
}

// Register installs every handler whose dependency is present.
func (h NotifyHandlers) Register() []TaskHandler {
	var out []TaskHandler
	if h.Email != nil {
		out = append(out, TaskHandler{Type: TaskTypeSendEmail, Handler: h.HandleSendEmail})
		if h.Accounts != nil {
			out = append(out, TaskHandler{Type: TaskTypePendingDigest, Handler: h.HandlePendingDigest})
		}
	}
	if h.SMS != nil {
		out = append(out, TaskHandler{Type: TaskTypeSendSMS, Handler: h.HandleSendSMS})
	}
	return out
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (h NotifyHandlers) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		return fmt.Errorf("jobs: bad email payload: %w", asynq.SkipRetry)
	}
	if err := h.Email.SendEmail(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		h.logger().Warn("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}

// HandleSendSMS processes TaskTypeSendSMS tasks.
func (h NotifyHandlers) HandleSendSMS(ctx context.Context, t *asynq.Task) error {
	var payload SendSMSPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		return fmt.Errorf("jobs: bad sms payload: %w", asynq.SkipRetry)
	}
	if err := h.SMS.SendSMS(ctx, payload.To, payload.Body); err != nil {
		h.logger().Warn("send sms", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}

// HandlePendingDigest emails each active superadmin the list of accounts
// still awaiting approval. Nothing is sent when the list is empty.
func (h NotifyHandlers) HandlePendingDigest(ctx context.Context, _ *asynq.Task) error {
	all, err := h.Accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("jobs: pending digest: %w", err)
	}
	var pending, recipients []string
	for _, a := range all {
		switch {
		case a.IsSuperAdmin():
			recipients = append(recipients, a.Email)
		case !a.Approved:
			pending = append(pending, a.Email)
		}
	}
	if len(pending) == 0 || len(recipients) == 0 {
		return nil
	}
	sort.Strings(pending)
	body := fmt.Sprintf("%d account(s) are waiting for approval:\n\n%s\n", len(pending), strings.Join(pending, "\n"))
	var failed int
	for _, to := range recipients {
		if err := h.Email.SendEmail(ctx, to, "Accounts awaiting approval", body); err != nil {
			h.logger().Warn("pending digest", slog.String("to", to), slog.Any("error", err))
			failed++
		}
	}
	if failed == len(recipients) {
		return fmt.Errorf("jobs: pending digest: all %d deliveries failed", failed)
	}
	return nil
}

func (h NotifyHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
