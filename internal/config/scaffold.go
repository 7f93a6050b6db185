package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"webenv/internal/envconfig"
	"webenv/web"
)

// ScaffoldResult reports what Scaffold changed.
type ScaffoldResult struct {
	Created        bool   // the local copy was written
	GitignoreEntry string // entry appended to .gitignore, empty if already present
}

// Scaffold copies the example template to the local path unless the local
// copy already exists (or force is set), then makes sure the local copy is
// listed in the .gitignore file.
func Scaffold(tmpl envconfig.TemplateConfig, force bool, logger envconfig.Logger) (ScaffoldResult, error) {
	var result ScaffoldResult

	_, err := os.Stat(tmpl.LocalPath)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("failed to stat %s: %w", tmpl.LocalPath, err)
	}

	if exists && !force {
		logger.Info("local config already exists, leaving it untouched", "path", tmpl.LocalPath)
	} else {
		data, err := readTemplate(tmpl.ExamplePath, logger)
		if err != nil {
			return result, err
		}
		if err := os.MkdirAll(filepath.Dir(tmpl.LocalPath), 0o755); err != nil {
			return result, fmt.Errorf("failed to create directory for %s: %w", tmpl.LocalPath, err)
		}
		if err := renameio.WriteFile(tmpl.LocalPath, data, 0o644); err != nil {
			return result, fmt.Errorf("failed to write %s: %w", tmpl.LocalPath, err)
		}
		result.Created = true
		logger.Info("local config created from template", "path", tmpl.LocalPath, "template", tmpl.ExamplePath, "overwritten", exists)
	}

	if tmpl.GitignorePath == "" {
		return result, nil
	}
	entry, err := EnsureIgnored(tmpl.GitignorePath, tmpl.LocalPath)
	if err != nil {
		return result, err
	}
	if entry != "" {
		result.GitignoreEntry = entry
		logger.Info("added local config to gitignore", "gitignore", tmpl.GitignorePath, "entry", entry)
	}
	return result, nil
}

func readTemplate(path string, logger envconfig.Logger) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	logger.Warn("template not found on disk, using embedded copy", "path", path)
	return web.ExampleTemplate, nil
}

// EnsureIgnored appends the local config path, relative to the .gitignore
// directory, unless an equivalent entry is present. It returns the entry it
// added, or "" when nothing changed.
func EnsureIgnored(gitignorePath, localPath string) (string, error) {
	entry, err := ignoreEntry(gitignorePath, localPath)
	if err != nil {
		return "", err
	}

	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read %s: %w", gitignorePath, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == entry || line == "/"+entry {
			return "", nil
		}
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString("\n# Local Firebase web config, never commit it\n")
	buf.WriteString(entry + "\n")

	perm := os.FileMode(0o644)
	if fi, err := os.Stat(gitignorePath); err == nil {
		perm = fi.Mode().Perm()
	}
	if err := renameio.WriteFile(gitignorePath, buf.Bytes(), perm); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", gitignorePath, err)
	}
	return entry, nil
}

func ignoreEntry(gitignorePath, localPath string) (string, error) {
	base, err := filepath.Abs(filepath.Dir(gitignorePath))
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s is outside the directory of %s", envconfig.ErrConfigurationError, localPath, gitignorePath)
	}
	return rel, nil
}
