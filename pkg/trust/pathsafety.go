package trust

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var agentIDPattern = regexp.MustCompile(
	`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateAgentID enforces the structured identifier pattern before the id is
// used anywhere near a storage path.
func ValidateAgentID(id string) error {
	if !agentIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidAgentID, id)
	}
	return nil
}

// checkPathComponent rejects traversal sequences, separators, and NUL in any
// value that participates in building a storage path.
func checkPathComponent(v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty component", ErrPathTraversal)
	}
	if strings.Contains(v, "..") ||
		strings.ContainsAny(v, `/\`) ||
		strings.ContainsRune(v, 0) {
		return fmt.Errorf("%w: %q", ErrPathTraversal, v)
	}
	return nil
}

// safeJoin joins root and name and verifies containment: the resulting path
// must stay inside root even after cleaning.
func safeJoin(root, name string) (string, error) {
	if err := checkPathComponent(name); err != nil {
		return "", err
	}
	joined := filepath.Join(root, name)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes store root", ErrPathTraversal, name)
	}
	return joined, nil
}
