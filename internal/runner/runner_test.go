package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeMakefile(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewMakeRunnerValidatesTarget(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "echo:\n\t@echo hi\n")

	if _, err := NewMakeRunner("echo", dir); err != nil {
		t.Fatalf("expected target to be found: %v", err)
	}
	if _, err := NewMakeRunner("missing", dir); err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestMakeRunnerRun(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "echo:\n\t@echo hi\n")

	r, err := NewMakeRunner("echo", dir)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Stdout != "hi\n" {
		t.Fatalf("got stdout %q, want %q", out.Stdout, "hi\n")
	}
}

func TestMakeRunnerFailingTarget(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "fail:\n\t@exit 3\n")

	r, err := NewMakeRunner("fail", dir)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	cmdErr, ok := err.(*CommandError)
	if !ok {
		t.Fatalf("expected CommandError, got %T", err)
	}
	if cmdErr.Output == nil || cmdErr.Output.ExitCode != 3 {
		t.Fatalf("unexpected output: %+v", cmdErr.Output)
	}
}

func TestNewMakeRunnerNoMakefile(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewMakeRunner("echo", dir); err == nil {
		t.Fatal("expected error when Makefile is missing")
	}
}
