// Package sandbox provides secure file operations with path validation for
// the file- and patch-mutating tools.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	. "github.com/hsaliak/goclaw-core/internal/logging"
)

// Unicode spaces that should be normalized to regular space.
var unicodeSpaces = regexp.MustCompile(`[\x{00A0}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]`)

// Denied files - blocked even within the sandbox.
var deniedFiles = []string{
	"goclaw.db",
	".env",
	".env.local",
	".env.production",
	"id_rsa",
	"id_ed25519",
	".gitconfig",
}

// Write-protected directories - agent can read but not write to these.
var writeProtectedDirs = []string{
	".git",
}

// normalizeUnicodeSpaces replaces unicode space characters with regular spaces
func normalizeUnicodeSpaces(s string) string {
	return unicodeSpaces.ReplaceAllString(s, " ")
}

// expandPath handles ~ expansion and unicode normalization
func expandPath(filePath string) string {
	normalized := normalizeUnicodeSpaces(filePath)

	if normalized == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(normalized, "~/") {
		home, _ := os.UserHomeDir()
		return home + normalized[1:]
	}
	return normalized
}

// ValidatePath validates that a path is within the workspace root and contains no symlinks.
// Returns the resolved absolute path if valid.
//
// Parameters:
//   - inputPath: the path provided by the agent (can be relative or absolute)
//   - workingDir: the current working directory for relative path resolution
//   - workspaceRoot: the root directory that paths must stay within
func ValidatePath(inputPath, workingDir, workspaceRoot string) (string, error) {
	expanded := expandPath(inputPath)

	var resolved string
	if filepath.IsAbs(expanded) {
		resolved = filepath.Clean(expanded)
	} else {
		resolved = filepath.Clean(filepath.Join(workingDir, expanded))
	}

	rootResolved := filepath.Clean(workspaceRoot)

	relative, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}

	if relative == "" {
		// Path is exactly the root - allowed
	} else if strings.HasPrefix(relative, "..") || filepath.IsAbs(relative) {
		L_warn("sandbox: path escapes workspace", "path", inputPath, "resolved", resolved, "root", rootResolved)
		return "", fmt.Errorf("path escapes sandbox root (%s): %s", shortPath(rootResolved), inputPath)
	}

	if relative != "" && relative != "." {
		if err := assertNoSymlink(relative, rootResolved); err != nil {
			return "", err
		}
	}

	filename := filepath.Base(resolved)
	for _, denied := range deniedFiles {
		if filename == denied {
			L_warn("sandbox: access to denied file blocked", "path", inputPath, "file", denied)
			return "", fmt.Errorf("access denied: %s is a protected file", denied)
		}
	}

	L_trace("sandbox: path validated", "input", inputPath, "resolved", resolved, "relative", relative)
	return resolved, nil
}

// assertNoSymlink walks each component of the relative path and checks for symlinks.
func assertNoSymlink(relative, root string) error {
	parts := strings.Split(relative, string(filepath.Separator))
	current := root

	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to stat path component: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			L_warn("sandbox: symlink detected in path", "path", current)
			return fmt.Errorf("symlink not allowed in sandbox path: %s", current)
		}
	}

	return nil
}

// ReadFile validates the path and reads the file contents.
func ReadFile(inputPath, workingDir, workspaceRoot string) ([]byte, error) {
	resolved, err := ValidatePath(inputPath, workingDir, workspaceRoot)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// AtomicWriteFile writes data to a file atomically (write to temp, then rename).
// It preserves the original file's permissions if the file exists.
func AtomicWriteFile(path string, data []byte, defaultPerm os.FileMode) error {
	perm := defaultPerm
	if perm == 0 {
		perm = 0600
	}

	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
		L_trace("sandbox: preserving file permissions", "path", path, "perm", perm)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".goclaw-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic rename failed: %w", err)
	}

	success = true
	return nil
}

// ValidateWritePath validates a path for write operations, additionally
// blocking writes to protected directories.
func ValidateWritePath(inputPath, workingDir, workspaceRoot string) (string, error) {
	resolved, err := ValidatePath(inputPath, workingDir, workspaceRoot)
	if err != nil {
		return "", err
	}

	rootResolved := filepath.Clean(workspaceRoot)
	relative, _ := filepath.Rel(rootResolved, resolved)

	for _, dir := range writeProtectedDirs {
		if strings.HasPrefix(relative, dir+string(filepath.Separator)) || relative == dir {
			L_warn("sandbox: write to protected directory blocked", "path", inputPath, "dir", dir)
			return "", fmt.Errorf("write denied: %s/ is read-only", dir)
		}
	}

	return resolved, nil
}

// WriteFileValidated validates the path for writes, then writes atomically.
func WriteFileValidated(inputPath, workingDir, workspaceRoot string, data []byte, defaultPerm os.FileMode) error {
	resolved, err := ValidateWritePath(inputPath, workingDir, workspaceRoot)
	if err != nil {
		return err
	}

	return AtomicWriteFile(resolved, data, defaultPerm)
}

// shortPath shortens a path by replacing home directory with ~
func shortPath(value string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return value
	}
	if strings.HasPrefix(value, home) {
		return "~" + value[len(home):]
	}
	return value
}
