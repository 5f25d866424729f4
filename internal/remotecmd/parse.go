package remotecmd

import (
	"strings"
)

type DiskUsageEntry struct {
	Size string `json:"size" example:"1.2G"`
	Path string `json:"path" example:"/var/log"`
}

type DuplicateGroup struct {
	Hash  string   `json:"hash" example:"d41d8cd98f00b204e9800998ecf8427e"`
	Paths []string `json:"paths"`
}

// ParseDiskUsage reads "SIZE<TAB>PATH" lines as printed by du -sh.
func ParseDiskUsage(output string) []DiskUsageEntry {
	entries := []DiskUsageEntry{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		size, p, ok := strings.Cut(line, "\t")
		if !ok {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			size, p = fields[0], strings.Join(fields[1:], " ")
		}
		entries = append(entries, DiskUsageEntry{Size: strings.TrimSpace(size), Path: p})
	}
	return entries
}

// ParseDuplicates reads md5sum lines ("HASH  PATH") and groups consecutive
// lines sharing a hash. Groups with a single path are dropped, which happens
// when the output was truncated mid-group.
func ParseDuplicates(output string) []DuplicateGroup {
	groups := []DuplicateGroup{}
	var current *DuplicateGroup

	flush := func() {
		if current != nil && len(current.Paths) > 1 {
			groups = append(groups, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(line) < 34 {
			continue
		}
		hash := line[:32]
		// md5sum separates with two spaces, or space-star in binary mode
		p := line[34:]
		if current == nil || current.Hash != hash {
			flush()
			current = &DuplicateGroup{Hash: hash}
		}
		current.Paths = append(current.Paths, p)
	}
	flush()

	return groups
}
