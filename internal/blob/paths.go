package blob

import (
	"fmt"

	"loom/internal/lease"
)

// SegmentPath builds the storage path for one synthesized segment. The
// version directory and encoded job key make each synthesis addressable
// without overwriting earlier script versions.
func SegmentPath(program, episodeDate, segmentKey string, scriptVersion int, jobKey string) string {
	return fmt.Sprintf("%s/segments/%s/%s/v%d/%s.mp3",
		program, episodeDate, segmentKey, scriptVersion, lease.EncodeJobKey(jobKey))
}

// EpisodePath builds the storage path for a stitched episode.
func EpisodePath(program, episodeDate string) string {
	return fmt.Sprintf("%s/episodes/%s/episode.mp3", program, episodeDate)
}
