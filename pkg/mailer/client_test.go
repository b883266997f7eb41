package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iliria/erp-backend/pkg/config"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.SendgridConfig {
	return config.SendgridConfig{
		APIKey:      "sg-key",
		DefaultFrom: "offers@iliria.test",
		FromName:    "Iliria ERP",
		BaseURL:     "http://mail.test",
	}
}

func TestSendPostsSendgridPayload(t *testing.T) {
	var captured map[string]any
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://mail.test/v3/mail/send" {
			t.Fatalf("unexpected url %s", req.URL)
		}
		if req.Header.Get("Authorization") != "Bearer sg-key" {
			t.Fatalf("missing bearer token")
		}
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Send(context.Background(), Message{
		To:      "buyer@example.com",
		Subject: "Offer ID-0001",
		HTML:    "<p>hello</p>",
		Text:    "hello",
		Attachments: []Attachment{{
			Filename:    "offer.html",
			ContentType: "text/html",
			Content:     []byte("<p>hello</p>"),
		}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	from := captured["from"].(map[string]any)
	if from["email"] != "offers@iliria.test" {
		t.Fatalf("unexpected from %v", from)
	}
	contents := captured["content"].([]any)
	if len(contents) != 2 || contents[0].(map[string]any)["type"] != "text/plain" {
		t.Fatalf("expected text/plain first, got %v", contents)
	}
	if len(captured["attachments"].([]any)) != 1 {
		t.Fatalf("expected one attachment")
	}
}

func TestSendMapsUpstreamFailure(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader("bad key")), Header: http.Header{}}, nil
	})
	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Send(context.Background(), Message{To: "a@b.co", Subject: "s", HTML: "x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mail request failed") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSendAddressesRecipientAndReplyTo(t *testing.T) {
	var captured struct {
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"to"`
		} `json:"personalizations"`
		From struct {
			Name string `json:"name"`
		} `json:"from"`
		ReplyTo struct {
			Email string `json:"email"`
		} `json:"reply_to"`
		Attachments []struct {
			Content     string `json:"content"`
			Disposition string `json:"disposition"`
		} `json:"attachments"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Send(context.Background(), Message{
		To:          "buyer@example.com",
		ToName:      "Blerta Krasniqi",
		Subject:     "Offer ID-0002",
		HTML:        "<p>hi</p>",
		ReplyTo:     "sales@iliria.test",
		Attachments: []Attachment{{Filename: "offer.html", ContentType: "text/html", Content: []byte("hi")}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(captured.Personalizations) != 1 || len(captured.Personalizations[0].To) != 1 {
		t.Fatalf("expected a single recipient, got %+v", captured.Personalizations)
	}
	to := captured.Personalizations[0].To[0]
	if to.Email != "buyer@example.com" || to.Name != "Blerta Krasniqi" {
		t.Fatalf("unexpected recipient %+v", to)
	}
	if captured.From.Name != "Iliria ERP" || captured.ReplyTo.Email != "sales@iliria.test" {
		t.Fatalf("unexpected sender fields %+v %+v", captured.From, captured.ReplyTo)
	}
	if len(captured.Attachments) != 1 || captured.Attachments[0].Content != "aGk=" || captured.Attachments[0].Disposition != "attachment" {
		t.Fatalf("unexpected attachments %+v", captured.Attachments)
	}
}

func TestSendTruncatesLongUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, strings.Repeat("x", 4*responseBodyReadLimit))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Send(context.Background(), Message{To: "a@b.co", Subject: "s", Text: "x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") || strings.Contains(err.Error(), strings.Repeat("x", responseBodyReadLimit+1)) {
		t.Fatalf("expected truncated status error, got %.80s", err.Error())
	}
}

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"missing recipient", Message{Subject: "s", HTML: "x"}},
		{"bad recipient", Message{To: "not-an-email", Subject: "s", HTML: "x"}},
		{"missing subject", Message{To: "a@b.co", HTML: "x"}},
		{"missing body", Message{To: "a@b.co", Subject: "s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewClientRequiresKeyAndSender(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error without api key")
	}
	cfg = testConfig()
	cfg.DefaultFrom = " "
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error without sender")
	}
}

func TestLogSenderLogsInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	if err := (LogSender{Logger: logg}).Send(context.Background(), Message{To: "a@b.co", Subject: "Offer", HTML: "x"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), `"mail_to":"a@b.co"`) {
		t.Fatalf("expected recipient in log, got %s", buf.String())
	}
}
