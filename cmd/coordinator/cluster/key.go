// Package cluster derives style group keys from asset paths and picks
// the primary/cover member of a group.
package cluster

import (
	"regexp"
	"strings"
)

// keyPattern matches a SKU folder name: 1-6 letters followed by a
// digit. The whole segment is the key.
var keyPattern = regexp.MustCompile(`^[A-Za-z]{1,6}[0-9]`)

// KeyFromPath derives the cluster key for a canonical relative path.
// Ancestor directory names are walked from the immediate parent
// upward; the first segment matching the SKU folder pattern is the
// key. Walking upward matters because some archives insert a subfolder
// (renders, exports) between the SKU folder and the file. Returns ""
// when no ancestor qualifies: the file is simply ungrouped.
func KeyFromPath(path string) string {
	segments := strings.Split(path, "/")
	// Last segment is the filename; walk parents from nearest to root.
	for i := len(segments) - 2; i >= 0; i-- {
		seg := segments[i]
		if keyPattern.MatchString(seg) {
			return strings.ToUpper(seg)
		}
	}
	return ""
}

// FolderPathForKey returns the directory path of the segment that
// produced the key, used as the group's representative folder.
func FolderPathForKey(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if keyPattern.MatchString(segments[i]) {
			return strings.Join(segments[:i+1], "/")
		}
	}
	return ""
}
