package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every portal task runs on.
	QueueDefault = "default"
	// TaskTypeSendEmail delivers one transactional email.
	TaskTypeSendEmail = "notify:email"
	// TaskTypeSendSMS delivers one SMS through the gateway.
	TaskTypeSendSMS = "notify:sms"
	// TaskTypePendingDigest mails superadmins the accounts awaiting approval.
	TaskTypePendingDigest = "accounts:pending-digest"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendSMSPayload describes one outbound text message.
type SendSMSPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// NewSendEmailTask constructs an email task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, fmt.Errorf("jobs: email recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// NewSendSMSTask constructs an SMS task.
func NewSendSMSTask(payload SendSMSPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, fmt.Errorf("jobs: sms recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendSMS, data, asynq.MaxRetry(3)), nil
}

// NewPendingDigestTask constructs the periodic digest task.
func NewPendingDigestTask() *asynq.Task {
	return asynq.NewTask(TaskTypePendingDigest, nil, asynq.MaxRetry(1))
}
