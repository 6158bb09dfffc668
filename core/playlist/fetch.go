package playlist

import (
	"context"

	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
)

// Fetcher pages through a playlist and joins per-video statistics onto
// each item. The catalog collaborator is injected; there is no package
// state.
type Fetcher struct {
	catalog Catalog
	logger  core.Logger
}

func NewFetcher(catalog Catalog, logger core.Logger) *Fetcher {
	return &Fetcher{catalog: catalog, logger: logger}
}

// Fetch returns up to maxResults descriptors in playlist order, positions
// numbered 1..N. A playlist item whose backing video is gone from the
// statistics response keeps its slot with zeroed stats so ordinals stay
// contiguous. Zero accessible items is ErrNotFound; any catalog failure is
// ErrUpstream with no partial results. The context is honored between pages.
func (f *Fetcher) Fetch(ctx context.Context, playlistID string, maxResults int) ([]VideoDescriptor, error) {
	if maxResults <= 0 {
		maxResults = MaxPageSize
	}

	var videos []VideoDescriptor
	var pageToken string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := f.catalog.ListPlaylistItems(ctx, playlistID, pageToken)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return nil, err
			}
			return nil, errors.WithMessage(ErrUpstream, err.Error())
		}

		stats, err := f.pageStats(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			vd := VideoDescriptor{
				ID:           item.VideoID,
				Title:        item.Title,
				Description:  item.Description,
				ThumbnailURL: item.ThumbnailURL,
				Position:     len(videos) + 1,
			}
			if st, ok := stats[item.VideoID]; ok {
				secs, err := ParseDuration(st.DurationToken)
				if err != nil {
					return nil, err
				}
				vd.DurationSeconds = secs
				vd.ViewCount = st.ViewCount
				vd.LikeCount = st.LikeCount
			} else {
				// video deleted or private; keep the slot
				f.logger.Debug("playlist item has no stats, keeping with zeroed stats", playlistID, item.VideoID)
			}
			videos = append(videos, vd)
			if len(videos) == maxResults {
				return videos, nil
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(videos) == 0 {
		return nil, errors.WithMessage(ErrNotFound, playlistID)
	}
	return videos, nil
}

func (f *Fetcher) pageStats(ctx context.Context, page Page) (map[string]VideoStats, error) {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.VideoID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stats, err := f.catalog.ListVideoStats(ctx, ids)
	if err != nil {
		return nil, errors.WithMessage(ErrUpstream, err.Error())
	}
	byID := make(map[string]VideoStats, len(stats))
	for _, st := range stats {
		byID[st.ID] = st
	}
	return byID, nil
}
