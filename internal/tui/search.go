package tui

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/studiowebux/mongobar/internal/stats"
)

// bucketSource exposes buckets to fuzzy matching as "id class ns kind shape"
type bucketSource []stats.BucketView

func (s bucketSource) String(i int) string {
	b := s[i]
	return strings.Join([]string{b.Fingerprint.ID, b.Fingerprint.Class, b.Namespace, string(b.Kind), b.Shape}, " ")
}

func (s bucketSource) Len() int {
	return len(s)
}

// filterBuckets keeps the rows matching pattern, preserving their order
func filterBuckets(rows []stats.BucketView, pattern string) []stats.BucketView {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return rows
	}

	matches := fuzzy.FindFrom(pattern, bucketSource(rows))
	keep := make(map[int]bool, len(matches))
	for _, match := range matches {
		keep[match.Index] = true
	}

	filtered := make([]stats.BucketView, 0, len(matches))
	for i, row := range rows {
		if keep[i] {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
