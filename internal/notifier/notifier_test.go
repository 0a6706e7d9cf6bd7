package notifier

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hookshot/hookshot/internal/payload"
	"github.com/hookshot/hookshot/internal/signature"
)

func TestSendSignsExactBody(t *testing.T) {
	const secret = "s3cr3t"

	received := make(chan struct {
		body []byte
		sig  string
	}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- struct {
			body []byte
			sig  string
		}{body: body, sig: r.Header.Get("X-Hookshot-Signature")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New()
	n.Send(Message{
		TaskID:     "abc-123",
		Hostname:   "deploy.example.com",
		Port:       1469,
		Owner:      "acme",
		Repo:       "widgets",
		RefType:    payload.Branch,
		RefName:    "master",
		SHA:        "deadbeef",
		State:      Success,
		NotifyURLs: []string{srv.URL},
	}, secret)

	select {
	case got := <-received:
		sig, err := signature.Parse(got.sig)
		if err != nil {
			t.Fatalf("could not parse signature header %q: %v", got.sig, err)
		}
		if !signature.Verify(sig, got.body, []byte(secret)) {
			t.Fatalf("signature %q does not verify against body %s", got.sig, got.body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestSendNoURLsIsNoop(t *testing.T) {
	n := New()
	n.Send(Message{TaskID: "x", State: Started}, "secret")
}

func TestSendDeliversStarted(t *testing.T) {
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New()
	n.Send(Message{
		TaskID:     "abc-123",
		State:      Started,
		NotifyURLs: []string{srv.URL},
	}, "s3cr3t")

	select {
	case body := <-received:
		if !strings.Contains(body, `"status":"started"`) {
			t.Fatalf("expected a started status in body, got %s", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Started notification")
	}
}
