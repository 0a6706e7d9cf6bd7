package repoconfig

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hookshot/hookshot/internal/payload"
)

func TestSpecificitySortMatchesFixture(t *testing.T) {
	patterns := []string{"branch-one", "branch-one-two", "branch-*", "branch*", "*-one-*", "*"}

	nonCatchAll := make([]string, 0, len(patterns)-1)
	for _, p := range patterns {
		if p != "*" {
			nonCatchAll = append(nonCatchAll, p)
		}
	}
	sort.Slice(nonCatchAll, func(i, j int) bool {
		return specificityLess(nonCatchAll[i], nonCatchAll[j])
	})
	nonCatchAll = append(nonCatchAll, "*")

	want := []string{"branch-one", "branch-one-two", "branch-*", "branch*", "*-one-*", "*"}
	if len(nonCatchAll) != len(want) {
		t.Fatalf("length mismatch: got %v", nonCatchAll)
	}
	for i := range want {
		if nonCatchAll[i] != want[i] {
			t.Fatalf("position %d: got %q want %q (full: %v)", i, nonCatchAll[i], want[i], nonCatchAll)
		}
	}
}

func TestResolveExactMatchBeatsWildcard(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[default]
method = "makefile"
task = "deploy"

[branch."master"]
task = "deploy-master"

[branch."*"]
task = "deploy-other"
`)
	writeMakefile(t, dir, "deploy-master:\n\t@echo hi\n\ndeploy-other:\n\t@echo hi\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	action, err := cfg.Resolve(payload.Branch, "master")
	if err != nil {
		t.Fatal(err)
	}
	if action.MakeTarget != "deploy-master" {
		t.Fatalf("got target %q, want deploy-master", action.MakeTarget)
	}
}

func TestResolveFallsBackToCatchAll(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[default]
method = "makefile"

[branch."*"]
task = "deploy-other"
`)
	writeMakefile(t, dir, "deploy-other:\n\t@echo hi\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	action, err := cfg.Resolve(payload.Branch, "feature-x")
	if err != nil {
		t.Fatal(err)
	}
	if action.MakeTarget != "deploy-other" {
		t.Fatalf("got target %q, want deploy-other", action.MakeTarget)
	}
}

func TestResolveNoMatchErrors(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[default]
method = "makefile"

[branch."master"]
task = "deploy"
`)
	writeMakefile(t, dir, "deploy:\n\t@echo hi\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Resolve(payload.Branch, "nope"); err == nil {
		t.Fatal("expected an error for an unmatched ref")
	}
}

func TestInvalidAnsibleConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[default]
method = "ansible"

[branch."master"]
playbook = "deploy.yml"
inventory = "inventory/prod"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	_, err = cfg.Resolve(payload.Branch, "master")
	if _, ok := err.(*InvalidAnsibleConfig); !ok {
		t.Fatalf("expected InvalidAnsibleConfig, got %T (%v)", err, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error loading from a directory with no config")
	}
}

func writeConfig(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".hookshot.conf"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeMakefile(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}
