package runner

import (
	"bytes"
	"os/exec"
)

// run executes cmd, capturing stdout and stderr into separate buffers.
// A non-zero exit is reported as a CommandError, never as success; a
// failure to spawn the process at all is also a CommandError.
func run(cmd *exec.Cmd) (*Output, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := &Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		out.ExitCode = 0
		return out, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		out.ExitCode = exitErr.ExitCode()
		return nil, &CommandError{
			Desc:   "command exited non-zero",
			Output: out,
			Detail: err.Error(),
		}
	}

	return nil, &CommandError{Desc: "failed to execute command", Detail: err.Error()}
}
