// Package ingress is hookshot's HTTP front door: it authenticates an
// incoming webhook, parses its payload, and hands the resulting
// deploy off to the TaskManager — read body, check a signature
// header, parse, dispatch, the same sequence any signed-webhook
// receiver follows, generalized here to hookshot's two accepted
// signature headers and its own queueing model.
package ingress

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hookshot/hookshot/internal/config"
	"github.com/hookshot/hookshot/internal/deploytask"
	"github.com/hookshot/hookshot/internal/domain"
	"github.com/hookshot/hookshot/internal/gitrepo"
	"github.com/hookshot/hookshot/internal/notifier"
	"github.com/hookshot/hookshot/internal/payload"
	"github.com/hookshot/hookshot/internal/signature"
	"github.com/hookshot/hookshot/internal/taskmanager"
)

// Server holds everything a handler needs: the immutable server
// config, the task manager queues deploys go into, and a shared
// notifier.
type Server struct {
	Config   *config.ServerConfig
	Tasks    *taskmanager.TaskManager[*deploytask.DeployTask]
	Notify   *notifier.Notifier
	Insecure bool
}

// Router builds the chi router for the whole service: /health,
// /tasks/{uuid}, and POST /tasks, each responding with Connection:
// close per the wire contract.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(closeConnection)

	r.Get("/health", s.handleHealth)
	r.Get("/tasks/{uuid}", s.handleGetTask)
	r.Post("/tasks", s.handlePostTask)

	return r
}

func closeConnection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("okay"))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	path := filepath.Join(s.Config.LogRoot, id+".log")

	data, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePostTask(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAppError(w, domain.ErrCouldNotParsePayload.WithError(err))
		return
	}
	defer r.Body.Close()

	if !s.Insecure {
		if appErr := s.verifySignature(r, body); appErr != nil {
			writeAppError(w, appErr)
			return
		}
	}

	ev, err := payload.Parse(body)
	if err != nil {
		writeAppError(w, domain.ErrCouldNotParsePayload.WithError(err))
		return
	}

	id := uuid.New().String()
	env := s.Config.ResolveEnv(ev.Owner, ev.Repo, ev.RefName)

	// The invariant "every accepted task has a readable log endpoint"
	// must hold at admission time, so the log file is created here,
	// before the task is ever queued — not lazily inside Run().
	logPath := filepath.Join(s.Config.LogRoot, id+".log")
	f, err := os.Create(logPath)
	if err != nil {
		writeAppError(w, domain.ErrInternal.WithError(err))
		return
	}
	f.Close()

	repo := gitrepo.FromPushEvent(ev, s.Config.CheckoutRoot)
	task := &deploytask.DeployTask{
		ID:       id,
		Repo:     repo,
		Env:      env,
		LogDir:   s.Config.LogRoot,
		Hostname: s.Config.Hostname,
		Port:     s.Config.Port,
		Secret:   s.Config.Secret,
		Notify:   s.Notify,
	}

	queueKey := s.Tasks.EnsureQueue(fmt.Sprintf("%s.%s.%s", ev.Owner, ev.Repo, ev.RefName))
	if _, err := s.Tasks.AddTask(queueKey, task); err != nil {
		writeAppError(w, domain.ErrServiceUnavailable.WithError(err))
		return
	}

	location := fmt.Sprintf("http://%s:%d/tasks/%s", s.Config.Hostname, s.Config.Port, id)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "Location: %s", location)
}

func (s *Server) verifySignature(r *http.Request, body []byte) *domain.AppError {
	native := r.Header.Get("X-Signature")
	gitHub := r.Header.Get("X-Hub-Signature")

	switch {
	case native != "" && gitHub != "":
		return domain.ErrTooManySignatures
	case native == "" && gitHub == "":
		return domain.ErrMissingSignature
	}

	raw := native
	if raw == "" {
		raw = gitHub
	}

	sig, err := signature.Parse(raw)
	if err != nil {
		return domain.ErrBadSignatureFormat.WithError(err)
	}

	if !signature.Verify(sig, body, []byte(s.Config.Secret)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

func writeAppError(w http.ResponseWriter, appErr *domain.AppError) {
	log.Printf("ingress: %s", appErr.Error())
	w.WriteHeader(appErr.StatusCode)
	fmt.Fprint(w, appErr.Message)
}
