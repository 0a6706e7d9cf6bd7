// Package usererr renders technical errors into the short, human
// readable lines that get written to a task's log file, the one place
// in hookshot an operator reads raw failure text instead of a status
// code.
package usererr

import (
	"fmt"
	"strings"
)

// Summarize converts an error into a one-line, operator-facing summary.
// It recognizes a handful of common failure shapes (connection
// refused, timeouts, missing files) and falls back to the raw error
// text otherwise.
func Summarize(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return "could not reach the remote host: " + errStr
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "operation timed out: " + errStr
	case strings.Contains(errStr, "no such file"), strings.Contains(errStr, "does not exist"):
		return "missing file or directory: " + errStr
	case strings.Contains(errStr, "permission denied"):
		return "permission denied: " + errStr
	default:
		return errStr
	}
}

// WithPrefix prepends a component label, matching the "Worker %d: ..."
// style the rest of this codebase logs with.
func WithPrefix(prefix string, err error) string {
	return fmt.Sprintf("%s: %s", prefix, Summarize(err))
}
