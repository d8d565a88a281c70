package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Email
}

func (r *recordingSender) Send(_ context.Context, email Email) error {
	r.sent = append(r.sent, email)
	return nil
}

func TestDirectDispatchAttachesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice_o1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	rec := &recordingSender{}
	err := NewDirect(rec).Dispatch(context.Background(), Envelope{
		To:             "jane@example.com",
		Subject:        "Invoice",
		Text:           "Thanks",
		AttachmentPath: path,
	})
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)
	require.Len(t, rec.sent[0].Attachments, 1)
	require.Equal(t, "invoice_o1.pdf", rec.sent[0].Attachments[0].Name)
	require.Equal(t, "application/pdf", rec.sent[0].Attachments[0].ContentType)
	require.Equal(t, []byte("%PDF"), rec.sent[0].Attachments[0].Content)
}

func TestDeliverRejectsMissingRecipientAndAttachment(t *testing.T) {
	rec := &recordingSender{}
	require.Error(t, Deliver(context.Background(), rec, Envelope{Subject: "x"}))
	require.Error(t, Deliver(context.Background(), rec, Envelope{To: "a@b.c", AttachmentPath: "/does/not/exist.pdf"}))
	require.Empty(t, rec.sent)
}

func TestBrevoClientSend(t *testing.T) {
	var got brevoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/smtp/email", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<1@brevo>"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewBrevoClient(srv.URL, "secret", "shop@example.com", "Shop")
	err := client.Send(context.Background(), Email{
		To:          "jane@example.com",
		Subject:     "Invoice",
		Text:        "a < b",
		Attachments: []Attachment{{Name: "invoice.pdf", Content: []byte("pdf")}},
	})
	require.NoError(t, err)
	require.Equal(t, "shop@example.com", got.Sender.Email)
	require.Equal(t, "jane@example.com", got.To[0].Email)
	require.Equal(t, "<p>a &lt; b</p>", got.HTMLContent)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf")), got.Attachment[0].Content)
}

func TestBrevoClientReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	t.Cleanup(srv.Close)

	err := NewBrevoClient(srv.URL, "bad", "shop@example.com", "Shop").Send(context.Background(), Email{To: "a@b.c"})
	require.ErrorContains(t, err, "status 401")
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	require.IsType(t, LogSender{}, NewSender("https://api.brevo.com", "", "shop@example.com", "Shop", nil))
	require.IsType(t, &BrevoClient{}, NewSender("https://api.brevo.com", "key", "shop@example.com", "Shop", nil))
}
