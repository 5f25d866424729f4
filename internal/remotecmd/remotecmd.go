// Package remotecmd builds the shell commands behind the file manager's
// helper actions and parses their output. Helper commands single-quote every
// path they interpolate. Exec is the exception and passes user input through.
package remotecmd

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrNoItems            = errors.New("items are required")
	ErrInvalidMode        = errors.New("mode must be an octal permission string")
)

const (
	diskUsageLimit  = 20
	duplicatesLimit = 50
)

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Exec builds the command line for a user-supplied command run in cwd.
// Both parts reach the remote shell verbatim, so cwd may use "~" or
// variables. An empty cwd means "/".
func Exec(cwd, command string) string {
	if cwd == "" {
		cwd = "/"
	}
	return "cd " + cwd + " && " + command
}

// InDir prefixes command with a cd into the quoted dir. An empty dir means "/".
func InDir(dir, command string) string {
	if dir == "" {
		dir = "/"
	}
	return "cd " + Quote(dir) + " && " + command
}

// DiskUsage lists the largest children of dir, biggest first.
func DiskUsage(dir string) string {
	return fmt.Sprintf("du -sh %s/* 2>/dev/null | sort -hr | head -%d", Quote(strings.TrimRight(dir, "/")), diskUsageLimit)
}

// Duplicates lists regular files under dir that share an md5 sum, one blank
// line between groups.
func Duplicates(dir string) string {
	return fmt.Sprintf("find %s -type f -exec md5sum {} + 2>/dev/null | sort | uniq -w32 -D --all-repeated=separate | head -%d",
		Quote(dir), duplicatesLimit)
}

// Compress builds a gzip tarball named archive in dir from the given items.
// Items are reduced to their base names, so only children of dir qualify.
func Compress(dir, archive string, items []string) (string, error) {
	if strings.TrimSpace(archive) == "" {
		return "", errors.New("archiveName is required")
	}

	var quoted []string
	for _, item := range items {
		name := path.Base(item)
		if name == "." || name == "/" || name == "" {
			continue
		}
		quoted = append(quoted, Quote(name))
	}
	if len(quoted) == 0 {
		return "", ErrNoItems
	}

	command := "tar -czf " + Quote(path.Base(archive)) + " -- " + strings.Join(quoted, " ")
	return InDir(dir, command), nil
}

// Extract picks the extractor by file extension and unpacks archive in dir.
func Extract(dir, archive string) (string, error) {
	name := path.Base(archive)
	lower := strings.ToLower(name)

	var command string
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		command = "tar -xzf " + Quote(name)
	case strings.HasSuffix(lower, ".tar.bz2"):
		command = "tar -xjf " + Quote(name)
	case strings.HasSuffix(lower, ".tar"):
		command = "tar -xf " + Quote(name)
	case strings.HasSuffix(lower, ".zip"):
		command = "unzip -o " + Quote(name)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
	}
	return InDir(dir, command), nil
}

// ParseMode accepts "755", "0644" or "4755" style octal strings.
func ParseMode(s string) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 5 {
		return 0, ErrInvalidMode
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o7777 {
		return 0, ErrInvalidMode
	}

	mode := os.FileMode(v & 0o777)
	if v&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if v&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if v&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode, nil
}
