package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// batchSequence is the fixed sequence suffix in outbound file names. Each
// run produces a new timestamp, so the sequence never needs to advance.
const batchSequence = "0001"

// BatchFileName derives the outbound data file name from the prefix, the
// run timestamp and the fixed sequence suffix.
func BatchFileName(prefix string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, ts.UTC().Format("20060102_150405"), batchSequence, ext)
}

// MarkerFileName swaps the data extension for the marker extension.
func MarkerFileName(dataName, dataExt, markerExt string) string {
	base := strings.TrimSuffix(dataName, "."+dataExt)
	return base + "." + markerExt
}

// MatchInbound reports whether a remote file name is an import candidate:
// it must match the partner's pattern and must not be a marker file.
func MatchInbound(name, pattern, markerExt string) bool {
	if markerExt != "" && strings.HasSuffix(name, "."+markerExt) {
		return false
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}
