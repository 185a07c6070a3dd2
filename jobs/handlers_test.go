package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwave/portal/internal/accounts"
)

type sentMessage struct {
	to, subject, body string
}

type stubSender struct {
	sent []sentMessage
	err  error
}

func (s *stubSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{to, subject, body})
	return nil
}

func (s *stubSender) SendSMS(ctx context.Context, to, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{to: to, body: body})
	return nil
}

type stubLister []accounts.Account

func (l stubLister) List(ctx context.Context) ([]accounts.Account, error) {
	return l, nil
}

func TestHandleSendEmail(t *testing.T) {
	sender := &stubSender{}
	h := NotifyHandlers{Email: sender}

	task, err := NewSendEmailTask(SendEmailPayload{To: "ops@isp.net", Subject: "hi", Body: "there"})
	require.NoError(t, err)
	require.NoError(t, h.HandleSendEmail(context.Background(), task))
	assert.Equal(t, []sentMessage{{"ops@isp.net", "hi", "there"}}, sender.sent)

	sender.err = errors.New("smtp down")
	assert.ErrorContains(t, h.HandleSendEmail(context.Background(), task), "smtp down")
}

func TestBadPayloadSkipsRetry(t *testing.T) {
	h := NotifyHandlers{Email: &stubSender{}, SMS: &stubSender{}}

	err := h.HandleSendEmail(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.HandleSendSMS(context.Background(), asynq.NewTask(TaskTypeSendSMS, []byte(`{"body":"no recipient"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTaskConstructorsRequireRecipient(t *testing.T) {
	_, err := NewSendEmailTask(SendEmailPayload{Subject: "x"})
	assert.Error(t, err)
	_, err = NewSendSMSTask(SendSMSPayload{Body: "x"})
	assert.Error(t, err)

	task, err := NewSendSMSTask(SendSMSPayload{To: "+628123", Body: "approved"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendSMS, task.Type())
	var payload SendSMSPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "+628123", payload.To)
}

func TestPendingDigest(t *testing.T) {
	sender := &stubSender{}
	h := NotifyHandlers{Email: sender, Accounts: stubLister{
		{Email: "root@isp.net", Role: accounts.RoleSuperAdmin, Approved: true},
		{Email: "z@isp.net", Role: accounts.RoleUser},
		{Email: "a@isp.net", Role: accounts.RoleUser},
		{Email: "ok@isp.net", Role: accounts.RoleUser, Approved: true},
	}}

	require.NoError(t, h.HandlePendingDigest(context.Background(), NewPendingDigestTask()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "root@isp.net", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "a@isp.net\nz@isp.net")
	assert.NotContains(t, sender.sent[0].body, "ok@isp.net")

	quiet := &stubSender{}
	h = NotifyHandlers{Email: quiet, Accounts: stubLister{{Email: "root@isp.net", Role: accounts.RoleSuperAdmin}}}
	require.NoError(t, h.HandlePendingDigest(context.Background(), NewPendingDigestTask()))
	assert.Empty(t, quiet.sent)
}

func TestRegisterSkipsMissingSenders(t *testing.T) {
	types := func(hs []TaskHandler) []string {
		var out []string
		for _, h := range hs {
			out = append(out, h.Type)
		}
		return out
	}
	assert.Empty(t, NotifyHandlers{}.Register())
	assert.Equal(t, []string{TaskTypeSendSMS}, types(NotifyHandlers{SMS: &stubSender{}}.Register()))
	assert.Equal(t,
		[]string{TaskTypeSendEmail, TaskTypePendingDigest, TaskTypeSendSMS},
		types(NotifyHandlers{Email: &stubSender{}, SMS: &stubSender{}, Accounts: stubLister{}}.Register()))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		res := httptest.NewRecorder()
		r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return res
	}

	res := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"retry":1,"paused":false}`, res.Body.String())

	res = serve(NewHandler(stubInspector{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	res = serve(NewHandler(nil, nil))
	assert.Equal(t, http.StatusOK, res.Code)
}
