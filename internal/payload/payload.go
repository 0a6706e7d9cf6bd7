// Package payload decodes the two webhook body shapes hookshot accepts
// (a native dialect and GitHub's push event) into a single normalized
// PushEvent, the same way a receiver handling both GitHub and GitLab
// push bodies would decode each into one common shape before acting
// on it.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"
)

// RefType distinguishes a branch push from a tag push.
type RefType string

const (
	Branch RefType = "branch"
	Tag    RefType = "tag"
)

// PushEvent is the dialect-independent result of parsing a webhook body.
type PushEvent struct {
	Owner     string
	Repo      string
	RefType   RefType
	RefName   string
	SHA       string
	RemoteURL string
	Prefix    string
}

// MissingFieldError reports a required field absent from the payload.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("payload: missing field %q", e.Field)
}

// InvalidFieldError reports a field present but of the wrong type or
// an unrecognized value.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("payload: invalid field %q: %s", e.Field, e.Reason)
}

// InvalidJSONError reports a body that isn't valid JSON at all.
type InvalidJSONError struct{ Underlying error }

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("payload: invalid JSON: %v", e.Underlying)
}
func (e *InvalidJSONError) Unwrap() error { return e.Underlying }

// BadPayloadError is returned when neither dialect could decode the body.
type BadPayloadError struct {
	NativeErr error
	GitHubErr error
}

func (e *BadPayloadError) Error() string {
	return fmt.Sprintf("payload: could not parse as native (%v) or github (%v) dialect", e.NativeErr, e.GitHubErr)
}

// nativePayload mirrors hookshot's own webhook shape.
type nativePayload struct {
	Prefix   *string `json:"prefix"`
	RepoName *string `json:"repo_name"`
	RefName  *string `json:"refstring"`
	RefType  *string `json:"reftype"`
	Remote   *string `json:"remote"`
	SHA      *string `json:"sha"`
}

// Parse attempts the native dialect first, then the GitHub dialect,
// returning BadPayloadError if both fail.
func Parse(raw []byte) (*PushEvent, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &InvalidJSONError{Underlying: err}
	}

	ev, nativeErr := parseNative(raw)
	if nativeErr == nil {
		return ev, nil
	}

	ev, githubErr := parseGitHub(raw)
	if githubErr == nil {
		return ev, nil
	}

	return nil, &BadPayloadError{NativeErr: nativeErr, GitHubErr: githubErr}
}

func parseNative(raw []byte) (*PushEvent, error) {
	var p nativePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &InvalidFieldError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s, got JSON %s", typeErr.Type, typeErr.Value)}
		}
		return nil, &InvalidJSONError{Underlying: err}
	}

	if p.RepoName == nil {
		return nil, &MissingFieldError{Field: "repo_name"}
	}
	if p.RefName == nil {
		return nil, &MissingFieldError{Field: "refstring"}
	}
	if p.RefType == nil {
		return nil, &MissingFieldError{Field: "reftype"}
	}
	if p.Remote == nil {
		return nil, &MissingFieldError{Field: "remote"}
	}
	if p.SHA == nil {
		return nil, &MissingFieldError{Field: "sha"}
	}

	var refType RefType
	switch *p.RefType {
	case "branch":
		refType = Branch
	case "tag":
		refType = Tag
	default:
		return nil, &InvalidFieldError{Field: "reftype", Reason: fmt.Sprintf("must be branch or tag, got %q", *p.RefType)}
	}

	prefix := "$"
	if p.Prefix != nil && *p.Prefix != "" {
		prefix = *p.Prefix
	}
	owner := strings.ReplaceAll(prefix, ".", "!")

	if *p.RepoName == "" {
		return nil, &MissingFieldError{Field: "repo_name"}
	}
	if *p.RefName == "" {
		return nil, &MissingFieldError{Field: "refstring"}
	}
	if *p.Remote == "" {
		return nil, &MissingFieldError{Field: "remote"}
	}

	return &PushEvent{
		Owner:     owner,
		Repo:      *p.RepoName,
		RefType:   refType,
		RefName:   *p.RefName,
		SHA:       *p.SHA,
		RemoteURL: *p.Remote,
		Prefix:    prefix,
	}, nil
}

func parseGitHub(raw []byte) (*PushEvent, error) {
	var ev github.PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &InvalidFieldError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s, got JSON %s", typeErr.Type, typeErr.Value)}
		}
		return nil, &InvalidJSONError{Underlying: err}
	}

	if ev.Ref == nil {
		return nil, &MissingFieldError{Field: "ref"}
	}
	if ev.After == nil {
		return nil, &MissingFieldError{Field: "after"}
	}
	if ev.Repo == nil {
		return nil, &MissingFieldError{Field: "repository"}
	}
	if ev.Repo.Name == nil {
		return nil, &MissingFieldError{Field: "repository.name"}
	}
	if ev.Repo.Owner == nil || ev.Repo.Owner.Name == nil {
		return nil, &MissingFieldError{Field: "repository.owner.name"}
	}
	if ev.Repo.SSHURL == nil {
		return nil, &MissingFieldError{Field: "repository.ssh_url"}
	}

	refType, refName, err := splitGitHubRef(*ev.Ref)
	if err != nil {
		return nil, err
	}

	return &PushEvent{
		Owner:     ev.Repo.Owner.GetName(),
		Repo:      ev.Repo.GetName(),
		RefType:   refType,
		RefName:   refName,
		SHA:       ev.GetAfter(),
		RemoteURL: ev.Repo.GetSSHURL(),
		Prefix:    "$",
	}, nil
}

func splitGitHubRef(ref string) (RefType, string, error) {
	switch {
	case strings.HasPrefix(ref, "refs/heads/"):
		return Branch, strings.TrimPrefix(ref, "refs/heads/"), nil
	case strings.HasPrefix(ref, "refs/tags/"):
		return Tag, strings.TrimPrefix(ref, "refs/tags/"), nil
	default:
		return "", "", &InvalidFieldError{Field: "ref", Reason: fmt.Sprintf("unrecognized ref shape %q", ref)}
	}
}
