package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bensky103/SalaDBot/internal/messages"
	"github.com/bensky103/SalaDBot/internal/session"
)

type fakeResponder struct {
	gotUser string
	gotText string
	reply   string
	err     error
	calls   int
}

func (f *fakeResponder) Process(_ context.Context, userID, text string) (string, error) {
	f.calls++
	f.gotUser = userID
	f.gotText = text
	return f.reply, f.err
}

type fakeSender struct {
	sentTo   string
	sentBody string
	readIDs  []string
	sendErr  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.sentTo = to
	f.sentBody = body
	return f.sendErr
}

func (f *fakeSender) MarkRead(_ context.Context, id string) error {
	f.readIDs = append(f.readIDs, id)
	return nil
}

type fakeCatalogHealth struct{ err error }

func (f fakeCatalogHealth) Count(context.Context) (int, error) { return 42, f.err }

type fakeModelHealth struct{ err error }

func (f fakeModelHealth) Ping(context.Context) error { return f.err }

func newTestServer(chat *fakeResponder, sender *fakeSender, appSecret string) *Server {
	return New(Config{
		Chat:        chat,
		Sender:      sender,
		Sessions:    session.NewStore(nil, 25),
		Catalog:     fakeCatalogHealth{},
		Model:       fakeModelHealth{},
		VerifyToken: "verify-me",
		AppSecret:   appSecret,
		OrderURL:    "https://order.example.test",
	})
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const textWebhook = `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"972501234567","id":"wamid.abc","type":"text","text":{"body":"מה יש בקינוחים?"}}]}}]}]}`

func TestWebhookVerify(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	h := s.Handler()

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("body = %q, want the echoed challenge", rec.Body.String())
	}
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	h := s.Handler()

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestWebhookProcessesMessage(t *testing.T) {
	chat := &fakeResponder{reply: "הנה הקינוחים שלנו"}
	sender := &fakeSender{}
	s := newTestServer(chat, sender, "secret")
	h := s.Handler()

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(textWebhook))
	req.Header.Set("X-Hub-Signature-256", sign("secret", textWebhook))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if chat.gotUser != "972501234567" || chat.gotText != "מה יש בקינוחים?" {
		t.Errorf("responder got %q / %q", chat.gotUser, chat.gotText)
	}
	if sender.sentTo != "972501234567" || sender.sentBody != "הנה הקינוחים שלנו" {
		t.Errorf("sent %q to %q", sender.sentBody, sender.sentTo)
	}
	if len(sender.readIDs) != 1 || sender.readIDs[0] != "wamid.abc" {
		t.Errorf("read ids = %v", sender.readIDs)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	chat := &fakeResponder{}
	s := newTestServer(chat, &fakeSender{}, "secret")
	h := s.Handler()

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(textWebhook))
	req.Header.Set("X-Hub-Signature-256", sign("wrong-secret", textWebhook))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if chat.calls != 0 {
		t.Error("bad signature must not reach the chat service")
	}
}

func TestWebhookStatusUpdateIgnored(t *testing.T) {
	chat := &fakeResponder{}
	s := newTestServer(chat, &fakeSender{}, "")
	h := s.Handler()

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"status":"delivered"}]}}]}]}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if chat.calls != 0 {
		t.Error("status update must not reach the chat service")
	}
}

func TestWebhookTurnFailureSendsApology(t *testing.T) {
	chat := &fakeResponder{err: errors.New("model down")}
	sender := &fakeSender{}
	s := newTestServer(chat, sender, "")
	h := s.Handler()

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(textWebhook))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Always 200: a Meta retry of a failed turn would just fail again.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if sender.sentBody != messages.GenericError() {
		t.Errorf("sent %q, want the generic apology", sender.sentBody)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestHealthUnhealthyOnCatalogFailure(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	s.catalog = fakeCatalogHealth{err: errors.New("db gone")}
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "unhealthy" || body["catalog"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestQR(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/qr", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty png body")
	}
}

func TestSessionInfo(t *testing.T) {
	s := newTestServer(&fakeResponder{}, &fakeSender{}, "")
	s.sessions.AppendExchange("u1", "שאלה", "תשובה")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/session/u1", nil))

	var info session.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if !info.Exists || info.ExchangeCount != 1 {
		t.Errorf("info = %+v", info)
	}
}
