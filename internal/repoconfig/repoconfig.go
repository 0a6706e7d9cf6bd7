// Package repoconfig loads the per-repository .hookshot.conf and
// resolves a pushed (refType, refName) pair down to a concrete
// deploy action, following the pattern-priority rules a deploy admin
// expects: exact names beat wildcards, and among wildcards the most
// literal pattern wins. A defaults block merges in wherever a
// per-pattern field is left unset.
package repoconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hookshot/hookshot/internal/payload"
)

const configFileName = ".hookshot.conf"

// Method is a deploy mechanism.
type Method string

const (
	MethodAnsible Method = "ansible"
	MethodMake    Method = "make"
)

// RefAction is a fully-merged, ready-to-run deploy action.
type RefAction struct {
	Method     Method
	Playbook   string
	Inventory  string
	MakeTarget string
	NotifyURLs []string
}

// rawAction mirrors one [branch.<pattern>]/[tag.<pattern>]/[default]
// TOML table. Every field is optional; absent fields are nil/zero and
// get merged from defaults during resolution.
type rawAction struct {
	Method     string   `toml:"method"`
	Playbook   string   `toml:"playbook"`
	Inventory  string   `toml:"inventory"`
	MakeTarget string   `toml:"task"`
	NotifyURLs []string `toml:"notify_urls"`
}

type rawConfig struct {
	Defaults rawAction            `toml:"default"`
	Branch   map[string]rawAction `toml:"branch"`
	Tag      map[string]rawAction `toml:"tag"`
}

// RepoConfig is the parsed, not-yet-resolved contents of a checkout's
// .hookshot.conf.
type RepoConfig struct {
	defaults rawAction
	branch   map[string]rawAction
	tag      map[string]rawAction
	root     string
}

// LoadError distinguishes file-open, file-read, and parse failures.
// Semantic problems are reported by Resolve instead, as
// InvalidAnsibleConfig or InvalidMakeConfig.
type LoadError struct {
	Stage string // "open", "read", "parse"
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("repoconfig: %s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InvalidAnsibleConfig reports a RefAction that claims method=ansible
// but, after merging with defaults, has no usable playbook/inventory.
type InvalidAnsibleConfig struct {
	Pattern string
	Reason  string
}

func (e *InvalidAnsibleConfig) Error() string {
	return fmt.Sprintf("invalid ansible config for %q: %s", e.Pattern, e.Reason)
}

// InvalidMakeConfig reports a RefAction that claims method=make but,
// after merging with defaults, has no make target, or that target is
// not a header in the checkout's Makefile.
type InvalidMakeConfig struct {
	Pattern string
	Reason  string
}

func (e *InvalidMakeConfig) Error() string {
	return fmt.Sprintf("invalid make config for %q: %s", e.Pattern, e.Reason)
}

// Load reads and parses .hookshot.conf from checkoutRoot.
func Load(checkoutRoot string) (*RepoConfig, error) {
	path := filepath.Join(checkoutRoot, configFileName)

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Stage: "open", Path: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &LoadError{Stage: "read", Path: path, Err: err}
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Stage: "parse", Path: path, Err: err}
	}

	return &RepoConfig{
		defaults: raw.Defaults,
		branch:   raw.Branch,
		tag:      raw.Tag,
		root:     checkoutRoot,
	}, nil
}

// Resolve maps (refType, refName) to a RefAction via exact match,
// then most-specific wildcard match, then catch-all "*", merging every
// result against the [default] block and validating it names a
// concrete, runnable command.
func (c *RepoConfig) Resolve(refType payload.RefType, refName string) (*RefAction, error) {
	table := c.branch
	if refType == payload.Tag {
		table = c.tag
	}

	raw, pattern, err := resolvePattern(table, refName)
	if err != nil {
		return nil, err
	}

	merged := mergeDefaults(raw, c.defaults)
	return c.validate(merged, pattern)
}

// resolvePattern implements §4.D: exact match first, then sorted
// wildcard patterns (most specific first), then catch-all "*".
func resolvePattern(table map[string]rawAction, refName string) (rawAction, string, error) {
	if exact, ok := table[refName]; ok {
		return exact, refName, nil
	}

	var catchAll *rawAction
	patterns := make([]string, 0, len(table))
	for pattern := range table {
		if pattern == "*" {
			v := table[pattern]
			catchAll = &v
			continue
		}
		if strings.Contains(pattern, "*") {
			patterns = append(patterns, pattern)
		}
	}

	sort.Slice(patterns, func(i, j int) bool {
		return specificityLess(patterns[i], patterns[j])
	})

	for _, pattern := range patterns {
		if matchPattern(pattern, refName) {
			return table[pattern], pattern, nil
		}
	}

	if catchAll != nil {
		return *catchAll, "*", nil
	}

	return rawAction{}, "", fmt.Errorf("no matching deploy rule for %q", refName)
}

// specificityLess reports whether pattern a is more specific than b,
// i.e. should sort earlier. Fewer wildcards is more specific. At equal
// wildcard count, a longer pattern is more specific than a shorter one
// (more literal text) — but that tiebreak applies only when the
// patterns actually contain a wildcard; two wildcard-free patterns
// (which only arise as a degenerate case here, since this list is
// pre-filtered to wildcard patterns) fall straight through to
// lexicographic order.
func specificityLess(a, b string) bool {
	wa, wb := strings.Count(a, "*"), strings.Count(b, "*")
	if wa != wb {
		return wa < wb
	}
	if wa > 0 && len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

func matchPattern(pattern, refName string) bool {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*?")
	re := regexp.MustCompile("^" + escaped + "$")
	return re.MatchString(refName)
}

func mergeDefaults(action, defaults rawAction) rawAction {
	if action.Method == "" {
		action.Method = defaults.Method
	}
	if action.Playbook == "" {
		action.Playbook = defaults.Playbook
	}
	if action.Inventory == "" {
		action.Inventory = defaults.Inventory
	}
	if action.MakeTarget == "" {
		action.MakeTarget = defaults.MakeTarget
	}
	if len(action.NotifyURLs) == 0 {
		action.NotifyURLs = defaults.NotifyURLs
	}
	return action
}

func (c *RepoConfig) validate(a rawAction, pattern string) (*RefAction, error) {
	method := Method(a.Method)
	if method == "" {
		method = MethodAnsible
	}
	if a.Method == "makefile" {
		method = MethodMake
	}

	switch method {
	case MethodAnsible:
		if a.Playbook == "" || a.Inventory == "" {
			return nil, &InvalidAnsibleConfig{Pattern: pattern, Reason: "missing playbook or inventory"}
		}
		if _, err := newVerifiedPath(c.root, a.Playbook); err != nil {
			return nil, &InvalidAnsibleConfig{Pattern: pattern, Reason: err.Error()}
		}
		if _, err := newVerifiedPath(c.root, a.Inventory); err != nil {
			return nil, &InvalidAnsibleConfig{Pattern: pattern, Reason: err.Error()}
		}
	case MethodMake:
		if a.MakeTarget == "" {
			return nil, &InvalidMakeConfig{Pattern: pattern, Reason: "missing task"}
		}
		if !makefileHasTarget(c.root, a.MakeTarget) {
			return nil, &InvalidMakeConfig{Pattern: pattern, Reason: fmt.Sprintf("target %q not found in Makefile", a.MakeTarget)}
		}
	default:
		return nil, &InvalidAnsibleConfig{Pattern: pattern, Reason: fmt.Sprintf("unknown method %q", a.Method)}
	}

	return &RefAction{
		Method:     method,
		Playbook:   a.Playbook,
		Inventory:  a.Inventory,
		MakeTarget: a.MakeTarget,
		NotifyURLs: a.NotifyURLs,
	}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// verifiedPath is a relative path confirmed to name a regular file
// under root at construction time, so callers never need a second
// existence check once they hold one.
type verifiedPath struct {
	rel string
}

func newVerifiedPath(root, rel string) (verifiedPath, error) {
	full := filepath.Join(root, rel)
	if r, err := filepath.Rel(root, full); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return verifiedPath{}, fmt.Errorf("%q is outside the checkout root", rel)
	}
	if !fileExists(full) {
		return verifiedPath{}, fmt.Errorf("%q does not exist", rel)
	}
	return verifiedPath{rel: rel}, nil
}

func (p verifiedPath) String() string {
	return p.rel
}

func makefileHasTarget(root, target string) bool {
	data, err := os.ReadFile(filepath.Join(root, "Makefile"))
	if err != nil {
		return false
	}
	header := target + ":"
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, header) {
			return true
		}
	}
	return false
}
