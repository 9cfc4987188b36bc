package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func samplePayload() LowStockPayload {
	return LowStockPayload{
		To:              "ops@example.com",
		MaterialID:      3,
		MaterialName:    "Flour",
		Unit:            "kg",
		Quantity:        "5.000",
		WarningQuantity: "10.000",
		TriggeredBy:     "Ana",
		TriggeredAt:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestLowStockMessage(t *testing.T) {
	msg := LowStockMessage(samplePayload())
	require.Equal(t, "ops@example.com", msg.To)
	require.Equal(t, "[Stockroom] Low stock: Flour", msg.Subject)
	require.Contains(t, msg.Body, "Material: Flour")
	require.Contains(t, msg.Body, "Current quantity: 5.000 kg")
	require.Contains(t, msg.Body, "Warning threshold: 10.000 kg")
	require.Contains(t, msg.Body, "Triggered by: Ana")
}

func TestLowStockHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	mailer := &recordingMailer{}
	handler := LowStockHandler(mailer, metrics, logger)

	task, err := NewLowStockTask(samplePayload())
	require.NoError(t, err)
	require.Equal(t, TaskLowStockAlert, task.Type())
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, mailer.sent, 1)

	bad := asynq.NewTask(TaskLowStockAlert, []byte("{"))
	require.ErrorIs(t, handler(context.Background(), bad), asynq.SkipRetry)

	mailer.err = errors.New("relay refused")
	require.Error(t, handler(context.Background(), task))
}

type recordingExec struct {
	sql  string
	args []any
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.CommandTag{}, nil
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	exec := &recordingExec{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	handler := IdempotencyCleanupHandler(exec, 24*time.Hour, metrics)

	require.NoError(t, handler(context.Background(), NewIdempotencyCleanupTask()))
	require.Contains(t, exec.sql, "DELETE FROM idempotency_keys")
	require.Len(t, exec.args, 1)
	cutoff, ok := exec.args[0].(time.Time)
	require.True(t, ok)
	require.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), cutoff, time.Minute)
}

func TestSMTPMailerEncodesMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 2525, From: "stockroom@example.com"})
	var gotAddr string
	var gotBody []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotBody = msg
		require.Equal(t, "stockroom@example.com", from)
		require.Equal(t, []string{"ops@example.com"}, to)
		return nil
	}
	require.NoError(t, m.Send(context.Background(), LowStockMessage(samplePayload())))
	require.Equal(t, "mail.local:2525", gotAddr)
	require.Contains(t, string(gotBody), "Subject: [Stockroom] Low stock: Flour\r\n")

	require.Error(t, m.Send(context.Background(), Message{Subject: "x"}))
}

func TestMailHeadersFoldLineBreaks(t *testing.T) {
	p := samplePayload()
	p.MaterialName = "Flour\r\nBcc: attacker@example.com"
	msg := LowStockMessage(p)
	require.Equal(t, "[Stockroom] Low stock: Flour Bcc: attacker@example.com", msg.Subject)

	m := NewSMTPMailer(SMTPConfig{Host: "mail.local", Port: 25, From: "stockroom@example.com"})
	raw := string(m.encode(Message{To: "ops@example.com", Subject: "Low\nBcc: x@example.com", Body: "hi"}))
	headers, _, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)
	for _, line := range strings.Split(headers, "\r\n") {
		require.False(t, strings.HasPrefix(line, "Bcc:"), "header injected: %q", line)
	}
	require.Contains(t, headers, "Subject: Low Bcc: x@example.com\r\n")

	raw = string(m.encode(Message{To: "ops@example.com", Subject: "Mehl knapp: Weizenmehl Typ 550 ü"}))
	require.Contains(t, raw, "Subject: =?UTF-8?q?")
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil))).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "default", body["queue"])
}
