// Package deploytask wires GitRepo, RepoConfig, and a Command Runner
// together into the single unit of work a TaskManager queue runs:
// fetch the latest commit, resolve how to deploy it, run that command,
// and narrate the whole thing into a per-task log file while firing
// status notifications out of band. Its lifecycle — log as you go, run
// the command, report success or failure — never lets an error escape
// Run itself; every failure is logged instead, and failures after the
// deploy action is resolved are also notified.
package deploytask

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/hookshot/hookshot/internal/gitrepo"
	"github.com/hookshot/hookshot/internal/metrics"
	"github.com/hookshot/hookshot/internal/notifier"
	"github.com/hookshot/hookshot/internal/repoconfig"
	"github.com/hookshot/hookshot/internal/runner"
	"github.com/hookshot/hookshot/internal/usererr"
)

// DeployTask is created when the ingress accepts a request and
// destroyed after Run returns; it implements taskmanager.Runnable.
type DeployTask struct {
	ID       string
	Repo     *gitrepo.GitRepo
	Env      map[string]string
	LogDir   string
	Hostname string
	Port     int
	Secret   string
	Notify   *notifier.Notifier

	log *os.File
}

// Run executes the task's full lifecycle. It never returns an error:
// every failure is written to the task log, and nothing escapes a
// DeployTask into its worker. Notify URLs come from the resolved
// RefAction, so only failures after resolution (building or running
// the command) send a Failed notification; fetch, config-load and
// resolve failures send none.
func (t *DeployTask) Run() {
	logFile, err := os.Create(filepath.Join(t.LogDir, t.ID+".log"))
	if err != nil {
		// The ingress already guaranteed a writable log directory at
		// admission time; a failure here means the filesystem changed
		// out from under us mid-flight. Nothing left to log to.
		return
	}
	defer logFile.Close()
	t.log = logFile

	env := t.buildEnv()
	t.writePreamble(env)

	out, err := t.Repo.FetchLatest(context.Background())
	if err != nil {
		t.logf("fetchLatest failed: %s", usererr.WithPrefix("git", err))
		if out != nil {
			t.logOutput(out)
		}
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		return
	}
	t.logOutput(out)

	cfg, err := repoconfig.Load(t.Repo.LocalPath())
	if err != nil {
		t.logf("could not load repo config: %s", usererr.WithPrefix("config", err))
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		return
	}

	action, err := cfg.Resolve(t.Repo.RefType, t.Repo.RefName)
	if err != nil {
		t.logf("could not resolve deploy action: %s", usererr.WithPrefix("config", err))
		t.notify(notifier.Failed, nil)
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		return
	}

	t.notify(notifier.Started, action)

	r, err := t.buildRunner(action)
	if err != nil {
		t.logf("could not construct runner: %s", usererr.WithPrefix("runner", err))
		t.notify(notifier.Failed, action)
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		return
	}

	result, runErr := r.Run(context.Background(), env)
	if runErr != nil {
		t.logf("deploy command failed: %s", usererr.WithPrefix("runner", runErr))
		if cmdErr, ok := runErr.(*runner.CommandError); ok && cmdErr.Output != nil {
			t.logOutput(cmdErr.Output)
		}
		t.notify(notifier.Failed, action)
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		return
	}

	t.logOutput(result)
	t.logf("finished at %s, exit code %d", time.Now().UTC().Format(time.RFC3339), result.ExitCode)

	// r.Run only ever returns a non-nil *Output on a zero exit; any
	// non-zero exit comes back as runErr above, so reaching here always
	// means success.
	t.notify(notifier.Success, action)
	metrics.TasksProcessedTotal.WithLabelValues("success").Inc()
}

// Cancel is invoked only on tasks evicted by capacity pressure before
// they ever ran.
func (t *DeployTask) Cancel() {
	f, err := os.Create(filepath.Join(t.LogDir, t.ID+".log"))
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, "task cancelled")
}

func (t *DeployTask) buildEnv() map[string]string {
	env := make(map[string]string, len(t.Env)+6)
	for k, v := range t.Env {
		env[k] = v
	}
	env["hookshot_checkout_path"] = t.Repo.LocalPath()
	env["git_ref"] = t.Repo.RefName
	env["git_ref_type"] = string(t.Repo.RefType)
	env["git_commit_sha"] = t.Repo.SHA
	env["git_repo_name"] = t.Repo.Repo
	env["git_repo_owner"] = t.Repo.Owner
	return env
}

func (t *DeployTask) writePreamble(env map[string]string) {
	who := "unknown"
	if u, err := user.Current(); err == nil {
		who = u.Username
	}

	t.logf("running as %s", who)
	t.logf("started at %s", time.Now().UTC().Format(time.RFC3339))

	t.logf("hookshot environment:")
	for k, v := range env {
		t.logf("  %s=%s", k, v)
	}

	t.logf("inherited environment:")
	for _, kv := range os.Environ() {
		t.logf("  %s", kv)
	}
}

func (t *DeployTask) buildRunner(action *repoconfig.RefAction) (taskRunner, error) {
	root := t.Repo.LocalPath()
	switch action.Method {
	case repoconfig.MethodAnsible:
		return runner.NewAnsibleRunner(action.Playbook, action.Inventory, root), nil
	case repoconfig.MethodMake:
		return runner.NewMakeRunner(action.MakeTarget, root)
	default:
		return nil, fmt.Errorf("deploytask: unknown method %q", action.Method)
	}
}

// taskRunner is satisfied by both runner.AnsibleRunner and
// runner.MakeRunner; it exists purely to let buildRunner return
// either one through a single interface.
type taskRunner interface {
	Run(ctx context.Context, env map[string]string) (*runner.Output, error)
}

func (t *DeployTask) notify(state notifier.TaskState, action *repoconfig.RefAction) {
	if t.Notify == nil {
		return
	}
	var urls []string
	if action != nil {
		urls = action.NotifyURLs
	}
	t.Notify.Send(notifier.Message{
		TaskID:     t.ID,
		Hostname:   t.Hostname,
		Port:       t.Port,
		Owner:      t.Repo.Owner,
		Repo:       t.Repo.Repo,
		RefType:    t.Repo.RefType,
		RefName:    t.Repo.RefName,
		SHA:        t.Repo.SHA,
		State:      state,
		NotifyURLs: urls,
	}, t.Secret)
}

func (t *DeployTask) logf(format string, args ...interface{}) {
	if t.log == nil {
		return
	}
	w := bufio.NewWriter(t.log)
	fmt.Fprintf(w, format+"\n", args...)
	w.Flush()
}

func (t *DeployTask) logOutput(out *runner.Output) {
	if out == nil {
		return
	}
	t.logf("exit code: %d", out.ExitCode)
	t.logf("stdout:\n%s", out.Stdout)
	t.logf("stderr:\n%s", out.Stderr)
}
