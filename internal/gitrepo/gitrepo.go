// Package gitrepo manages the on-disk checkout backing a single
// (owner, repo, refName) queue. It knows exactly one trick: make the
// working tree match the SHA a webhook announced, cloning fresh if
// nothing is there yet and fetching-and-resetting otherwise.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/hookshot/hookshot/internal/payload"
	"github.com/hookshot/hookshot/internal/runner"
)

// GitRepo is derived from a PushEvent plus the checkout root all
// repos live under. The on-disk directory it describes is long-lived
// and shared across requests for the same (owner,repo,refName); only
// the worker servicing that queue ever touches it.
type GitRepo struct {
	Owner        string
	Repo         string
	RefType      payload.RefType
	RefName      string
	SHA          string
	RemoteURL    string
	CheckoutRoot string
}

// FromPushEvent builds a GitRepo descriptor for an incoming event.
func FromPushEvent(ev *payload.PushEvent, checkoutRoot string) *GitRepo {
	return &GitRepo{
		Owner:        ev.Owner,
		Repo:         ev.Repo,
		RefType:      ev.RefType,
		RefName:      ev.RefName,
		SHA:          ev.SHA,
		RemoteURL:    ev.RemoteURL,
		CheckoutRoot: checkoutRoot,
	}
}

// sanitize replaces path separators with "!" so a ref name can never
// escape checkoutRoot or introduce extra path segments.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "!")
	s = strings.ReplaceAll(s, "\\", "!")
	return s
}

// LocalPath is checkoutRoot/sanitize(owner.repo.refName).
func (r *GitRepo) LocalPath() string {
	name := sanitize(fmt.Sprintf("%s.%s.%s", r.Owner, r.Repo, r.RefName))
	return filepath.Join(r.CheckoutRoot, name)
}

// exists reports whether the local checkout directory is already present.
func (r *GitRepo) exists() bool {
	info, err := os.Stat(r.LocalPath())
	return err == nil && info.IsDir()
}

// FetchLatest is the shell equivalent of:
//
//	(test -d localPath && cd localPath && git fetch --tags && git reset --hard sha)
//	  || git clone --depth=1 --single-branch -b refName remoteURL localPath
//
// Directory existence is the only test for "already cloned" —
// validating repository identity is explicitly out of scope. A literal
// SHA of "HEAD" means "whatever the ref points at after fetch/clone".
func (r *GitRepo) FetchLatest(ctx context.Context) (*runner.Output, error) {
	if r.exists() {
		return r.fetchAndReset(ctx)
	}
	return r.cloneFresh(ctx)
}

func (r *GitRepo) cloneFresh(ctx context.Context) (*runner.Output, error) {
	var stdout strings.Builder

	localPath := r.LocalPath()
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, &runner.CommandError{Desc: "failed to create checkout parent directory", Detail: err.Error()}
	}

	repo, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
		URL:           r.RemoteURL,
		ReferenceName: refName(r.RefType, r.RefName),
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.AllTags,
	})
	if err != nil {
		return nil, &runner.CommandError{Desc: "git clone failed", Detail: err.Error()}
	}
	fmt.Fprintf(&stdout, "cloned %s into %s\n", r.RemoteURL, localPath)

	if r.SHA != "" && !strings.EqualFold(r.SHA, "HEAD") {
		if err := hardReset(repo, r.SHA); err != nil {
			return nil, &runner.CommandError{Desc: "git reset --hard failed after clone", Detail: err.Error()}
		}
		fmt.Fprintf(&stdout, "reset to %s\n", r.SHA)
	}

	return &runner.Output{ExitCode: 0, Stdout: stdout.String()}, nil
}

func (r *GitRepo) fetchAndReset(ctx context.Context) (*runner.Output, error) {
	var stdout strings.Builder

	repo, err := git.PlainOpen(r.LocalPath())
	if err != nil {
		return nil, &runner.CommandError{Desc: "failed to open existing checkout", Detail: err.Error()}
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, &runner.CommandError{Desc: "git fetch failed", Detail: err.Error()}
	}
	fmt.Fprintf(&stdout, "fetched %s\n", r.RemoteURL)

	target := r.SHA
	if target == "" || strings.EqualFold(target, "HEAD") {
		// fetch updates the remote-tracking branch, not the local one;
		// tags are fetched into refs/tags directly.
		name := refName(r.RefType, r.RefName)
		if r.RefType != payload.Tag {
			name = plumbing.NewRemoteReferenceName("origin", r.RefName)
		}
		ref, err := repo.Reference(name, true)
		if err != nil {
			return nil, &runner.CommandError{Desc: "failed to resolve HEAD after fetch", Detail: err.Error()}
		}
		target = ref.Hash().String()
	}

	if err := hardReset(repo, target); err != nil {
		return nil, &runner.CommandError{Desc: "git reset --hard failed", Detail: err.Error()}
	}
	fmt.Fprintf(&stdout, "reset to %s\n", target)

	return &runner.Output{ExitCode: 0, Stdout: stdout.String()}, nil
}

func hardReset(repo *git.Repository, sha string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(sha),
		Mode:   git.HardReset,
	})
}

func refName(refType payload.RefType, name string) plumbing.ReferenceName {
	if refType == payload.Tag {
		return plumbing.NewTagReferenceName(name)
	}
	return plumbing.NewBranchReferenceName(name)
}
