package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// AnsibleRunner invokes ansible-playbook against a fixed playbook and
// inventory. It's a disposable, one-shot value built fresh at
// resolution time from a RefAction — it never holds a back-reference
// to the config it came from.
type AnsibleRunner struct {
	Playbook    string
	Inventory   string
	ProjectRoot string
}

// NewAnsibleRunner constructs a runner for the given playbook/inventory
// pair, rooted at projectRoot. Existence of playbook/inventory is
// verified by the repo config resolver, not here.
func NewAnsibleRunner(playbook, inventory, projectRoot string) *AnsibleRunner {
	return &AnsibleRunner{Playbook: playbook, Inventory: inventory, ProjectRoot: projectRoot}
}

// Run invokes `ansible-playbook -i <inventory> <playbook>`, extending
// the child's environment with env and passing each entry again as a
// JSON-encoded `-e key=value` argument, so shell-unsafe characters in
// values are quoted safely on the command line.
func (r *AnsibleRunner) Run(ctx context.Context, env map[string]string) (*Output, error) {
	args := make([]string, 0, len(env)*2+3)
	for k, v := range env {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, &CommandError{Desc: "failed to encode ansible extra-var", Detail: fmt.Sprintf("%s: %v", k, err)}
		}
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, encoded))
	}
	args = append(args, "-i", r.Inventory, r.Playbook)

	cmd := exec.CommandContext(ctx, "ansible-playbook", args...)
	cmd.Dir = r.ProjectRoot
	cmd.Env = append(os.Environ(), envPairs(env)...)

	return run(cmd)
}
