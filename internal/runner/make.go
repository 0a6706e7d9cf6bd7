package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// MakeRunner invokes `make <target>` inside a project root.
type MakeRunner struct {
	Target      string
	ProjectRoot string
}

// NewMakeRunner validates, at construction time, that target appears
// as a target header in Makefile at projectRoot (a prefix match
// against "<target>:", no deep parsing of the Makefile's grammar).
func NewMakeRunner(target, projectRoot string) (*MakeRunner, error) {
	f, err := os.Open(filepath.Join(projectRoot, "Makefile"))
	if err != nil {
		return nil, &CommandError{Desc: "can't open Makefile", Detail: err.Error()}
	}
	defer f.Close()

	header := target + ":"
	hasTarget := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), header) {
			hasTarget = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &CommandError{Desc: "can't read Makefile", Detail: err.Error()}
	}
	if !hasTarget {
		return nil, &CommandError{Desc: "Makefile does not have specified task", Detail: target}
	}

	return &MakeRunner{Target: target, ProjectRoot: projectRoot}, nil
}

// Run invokes `make <target>` with env applied as OS environment.
func (r *MakeRunner) Run(ctx context.Context, env map[string]string) (*Output, error) {
	cmd := exec.CommandContext(ctx, "make", r.Target)
	cmd.Dir = r.ProjectRoot
	cmd.Env = append(os.Environ(), envPairs(env)...)

	return run(cmd)
}

func envPairs(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	return pairs
}
