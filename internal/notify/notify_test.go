package notify

import (
	"context"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to, subject, html string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderer_AllTemplates(t *testing.T) {
	r := newRenderer(t)
	validity := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	order := OrderEmail{
		CustomerName: "Alice",
		OrderNumber:  "FL-250301-AB12",
		Status:       "shipped",
		Total:        decimal.RequireFromString("42.5"),
		Lines:        []OrderLine{{Name: "Roses", Quantity: 2, UnitPrice: decimal.RequireFromString("21.25")}},
	}
	quote := QuoteEmail{
		CustomerName: "Alice",
		EventType:    "wedding",
		Status:       "sent",
		Comment:      "Includes delivery",
		ValidityDate: &validity,
		Total:        decimal.RequireFromString("300"),
	}

	tests := []struct {
		tmpl Template
		data any
		want string
	}{
		{TemplateOrderConfirmation, order, "42.50"},
		{TemplateOrderCancelled, order, "FL-250301-AB12"},
		{TemplateOrderStatusUpdate, order, "shipped"},
		{TemplateQuoteRequested, quote, "wedding"},
		{TemplateQuoteUpdated, quote, "wedding"},
		{TemplateQuoteSent, quote, "2025-06-01"},
		{TemplateQuoteAccepted, quote, "accepted"},
		{TemplateQuoteDeclined, quote, "Includes delivery"},
		{TemplatePasswordReset, PasswordResetEmail{Name: "Alice", ResetURL: "https://flora.test/reset-password/abc"}, "reset-password/abc"},
		{TemplateLowStock, LowStockEmail{Threshold: 5, Products: []LowStockLine{{Name: "Tulips", SKU: "P1", Stock: 2}}}, "Tulips"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tmpl), func(t *testing.T) {
			body, err := r.Render(Message{Template: tt.tmpl, Data: tt.data})
			require.NoError(t, err)
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	_, err := newRenderer(t).Render(Message{Template: "nope"})
	require.Error(t, err)
}

func TestQueue_Delivers(t *testing.T) {
	mailer := &recordingMailer{}
	q := NewQueue(mailer, newRenderer(t), zap.NewNop(), QueueConfig{Workers: 2, Size: 8})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	for range 3 {
		q.Enqueue(ctx, Message{
			To:       "alice@example.com",
			Subject:  "Password reset",
			Template: TemplatePasswordReset,
			Data:     PasswordResetEmail{Name: "Alice", ResetURL: "https://x"},
		})
	}

	require.Eventually(t, func() bool { return mailer.count() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sent, failed, dropped := q.Stats()
	assert.Equal(t, int64(3), sent)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(&recordingMailer{}, newRenderer(t), zap.NewNop(), QueueConfig{Workers: 1, Size: 1})

	q.Enqueue(context.Background(), Message{Template: TemplateLowStock})
	q.Enqueue(context.Background(), Message{Template: TemplateLowStock})

	_, _, dropped := q.Stats()
	assert.Equal(t, int64(1), dropped)
	assert.Equal(t, 1, q.Backlog())
}

func TestQueue_FailureIsCounted(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("relay down")}
	q := NewQueue(mailer, newRenderer(t), zap.NewNop(), QueueConfig{Workers: 1, Size: 4})

	q.Enqueue(context.Background(), Message{
		To:       "bob@example.com",
		Template: TemplatePasswordReset,
		Data:     PasswordResetEmail{Name: "Bob"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))

	sent, failed, _ := q.Stats()
	assert.Zero(t, sent)
	assert.Equal(t, int64(1), failed)
}

func TestSMTPMailer_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "shop@example.com"})
	m.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "alice@example.com", "Hello", "<p>hi</p>"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hello\r\n")
	assert.Contains(t, gotMsg, "<p>hi</p>")
}
