// Package notify turns account lifecycle events into queued email and SMS
// messages and implements the senders the worker delivers them with.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/jobs"
)

// Queue accepts notification tasks.
type Queue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error
	EnqueueSendSMS(ctx context.Context, payload jobs.SendSMSPayload) error
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// PortalURL is included in messages so recipients know where to sign in.
	PortalURL string
	// SMS enables text messages. Leave it off unless a worker is running
	// with an SMS gateway, otherwise the tasks have no handler.
	SMS bool
}

// Dispatcher enqueues notifications for account events.
type Dispatcher struct {
	queue     Queue
	portalURL string
	sms       bool
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(queue Queue, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{queue: queue, portalURL: strings.TrimRight(opts.PortalURL, "/"), sms: opts.SMS}
}

// AccountApproved queues an email and, when SMS is enabled and a phone number
// is on file, an SMS. Both are attempted; failures are joined.
func (d *Dispatcher) AccountApproved(ctx context.Context, acct accounts.Account) error {
	name := acct.DisplayName
	if name == "" {
		name = acct.Email
	}
	var errs []error
	err := d.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      acct.Email,
		Subject: "Your portal account has been approved",
		Body: fmt.Sprintf("Hello %s,\n\nAn administrator approved your account. You can now sign in at %s.\n",
			name, d.signInURL()),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("notify: email %s: %w", acct.Email, err))
	}
	if phone := strings.TrimSpace(acct.Phone); d.sms && phone != "" {
		err := d.queue.EnqueueSendSMS(ctx, jobs.SendSMSPayload{
			To:   phone,
			Body: "Your portal account has been approved. Sign in at " + d.signInURL(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify: sms %s: %w", phone, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) signInURL() string {
	if d.portalURL == "" {
		return "the portal"
	}
	return d.portalURL + "/auth/login"
}
