// Package playlist turns a remote video playlist into an ordered list of
// video descriptors ready for course assembly.
package playlist

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("playlist not found or has no accessible items")
	ErrUpstream = errors.New("video catalog unavailable") // retryable by caller
)

// MaxPageSize is the largest page the video catalog serves per request.
const MaxPageSize = 50

type (
	// VideoDescriptor is one playlist entry joined with its video statistics.
	// Descriptors are ephemeral: produced per ingestion call and consumed by
	// course assembly.
	VideoDescriptor struct {
		ID              string
		Title           string
		Description     string
		ThumbnailURL    string
		DurationSeconds int
		Position        int // 1-based ordinal within the playlist
		ViewCount       int64
		LikeCount       int64
	}

	// Item is a playlist entry as listed by the catalog, before the
	// statistics join.
	Item struct {
		VideoID      string
		Title        string
		Description  string
		ThumbnailURL string
	}

	// Page is one page of playlist items; an empty NextPageToken means the
	// catalog has no further pages.
	Page struct {
		Items         []Item
		NextPageToken string
	}

	// VideoStats carries the per-video numbers joined onto playlist items.
	VideoStats struct {
		ID            string
		DurationToken string // compact ISO-8601, parsed by ParseDuration
		ViewCount     int64
		LikeCount     int64
	}

	// Catalog is the external video catalog collaborator.
	Catalog interface {
		ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (Page, error)
		ListVideoStats(ctx context.Context, videoIDs []string) ([]VideoStats, error)
	}
)

var playlistIDRegexes = []*regexp.Regexp{
	regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`^([A-Za-z0-9_-]{13,42})$`),
}

// ExtractPlaylistID pulls the playlist id out of a watch/playlist URL, or
// accepts a bare id as-is.
func ExtractPlaylistID(raw string) (string, bool) {
	for _, re := range playlistIDRegexes {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1], true
		}
	}
	return "", false
}
