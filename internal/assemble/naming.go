package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeRunes   = regexp.MustCompile(`[^\w\s\-]`)
	separatorRuns = regexp.MustCompile(`[\s\-]+`)
)

const maxChapterNameLen = 80

// SanitizeChapterName reduces a chapter title to a filename-safe slug. Only
// letters, digits and underscores survive; runs of spaces and hyphens
// collapse to a single underscore.
func SanitizeChapterName(title string) string {
	s := unsafeRunes.ReplaceAllString(title, "")
	s = separatorRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if len(s) > maxChapterNameLen {
		cut := strings.LastIndex(s[:maxChapterNameLen], "_")
		if cut <= 0 {
			cut = maxChapterNameLen
		}
		s = strings.TrimRight(s[:cut], "_")
	}
	if s == "" {
		return "chapter"
	}
	return s
}

// ChapterFileName names a per-chapter output file, ordinal-prefixed so a
// directory listing sorts in book order.
func ChapterFileName(index int, title, ext string) string {
	return fmt.Sprintf("%02d_%s%s", index+1, SanitizeChapterName(title), ext)
}

// UniquePath returns base+ext, suffixed _2, _3, ... if the unsuffixed path
// already exists.
func UniquePath(base, ext string) (string, error) {
	for counter := 1; counter <= 1000; counter++ {
		suffix := ""
		if counter > 1 {
			suffix = fmt.Sprintf("_%d", counter)
		}
		candidate := base + suffix + ext
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe output path: %w", err)
		}
	}
	return "", fmt.Errorf("no unique path available for %s", filepath.Base(base))
}
