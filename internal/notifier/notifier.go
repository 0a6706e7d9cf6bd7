// Package notifier posts signed JSON status messages about a deploy
// task to whatever URLs its RefAction named, entirely out of band from
// the worker running that task. It reuses the signing half of
// internal/signature; every delivery runs on its own detached
// goroutine and never blocks its caller.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hookshot/hookshot/internal/metrics"
	"github.com/hookshot/hookshot/internal/payload"
	"github.com/hookshot/hookshot/internal/signature"
)

// TaskState is a deploy task's lifecycle stage.
type TaskState string

const (
	Started TaskState = "started"
	Success TaskState = "success"
	Failed  TaskState = "failed"
)

// Message carries everything needed to build and address a
// notification for one TaskState transition.
type Message struct {
	TaskID     string
	Hostname   string
	Port       int
	Owner      string
	Repo       string
	RefType    payload.RefType
	RefName    string
	SHA        string
	State      TaskState
	NotifyURLs []string
}

// wireBody is the exact JSON shape sent to every notify URL.
type wireBody struct {
	Status  string `json:"status"`
	Failed  bool   `json:"failed"`
	TaskID  string `json:"task_id"`
	TaskURL string `json:"task_url"`
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	RefType string `json:"reftype"`
	RefName string `json:"refstring"`
	SHA     string `json:"sha"`
}

// Notifier posts signed status messages. Its zero value is usable.
type Notifier struct {
	Client *http.Client
}

// New constructs a Notifier with a bounded per-request timeout so a
// slow or hanging receiver can never pin down the detached goroutine
// forever.
func New() *Notifier {
	return &Notifier{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Send builds the wire body for msg and fires a signed POST at every
// URL in msg.NotifyURLs, each on its own detached goroutine. Failures
// are logged and swallowed: notifications are best-effort and must
// never affect the deploy worker that triggered them.
func (n *Notifier) Send(msg Message, secret string) {
	if len(msg.NotifyURLs) == 0 {
		return
	}

	body, err := json.Marshal(wireBody{
		Status:  string(msg.State),
		Failed:  msg.State == Failed,
		TaskID:  msg.TaskID,
		TaskURL: fmt.Sprintf("http://%s:%d/tasks/%s", msg.Hostname, msg.Port, msg.TaskID),
		Owner:   msg.Owner,
		Repo:    msg.Repo,
		RefType: string(msg.RefType),
		RefName: msg.RefName,
		SHA:     msg.SHA,
	})
	if err != nil {
		log.Printf("notifier: could not encode message for task %s: %v", msg.TaskID, err)
		return
	}

	sig, err := signature.Create(signature.SHA256, body, []byte(secret))
	if err != nil {
		log.Printf("notifier: could not sign message for task %s: %v", msg.TaskID, err)
		return
	}

	client := n.client()
	for _, url := range msg.NotifyURLs {
		go n.post(client, url, body, sig.String())
	}
}

func (n *Notifier) client() *http.Client {
	if n.Client != nil {
		return n.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (n *Notifier) post(client *http.Client, url string, body []byte, sigHeader string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("notifier: could not build request for %s: %v", url, err)
		metrics.NotifyFailuresTotal.WithLabelValues("request").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hookshot-Signature", sigHeader)

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("notifier: request to %s failed: %v", url, err)
		metrics.NotifyFailuresTotal.WithLabelValues("unreachable").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("notifier: %s responded with status %d", url, resp.StatusCode)
		metrics.NotifyFailuresTotal.WithLabelValues("status").Inc()
	}
}
