// Package youtube implements the video catalog collaborator on top of the
// YouTube Data API v3.
package youtube

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/playlist"
)

const baseURL = "https://www.googleapis.com/youtube/v3"

type (
	Client struct {
		rc     *resty.Client
		key    string
		logger core.Logger
	}

	playlistItemsResponse struct {
		NextPageToken string `json:"nextPageToken"`
		Items         []struct {
			Snippet struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Position    int    `json:"position"`
				ResourceID  struct {
					VideoID string `json:"videoId"`
				} `json:"resourceId"`
				Thumbnails struct {
					Medium struct {
						URL string `json:"url"`
					} `json:"medium"`
					Default struct {
						URL string `json:"url"`
					} `json:"default"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}

	videosResponse struct {
		Items []struct {
			ID             string `json:"id"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
			Statistics struct {
				ViewCount string `json:"viewCount"`
				LikeCount string `json:"likeCount"`
			} `json:"statistics"`
		} `json:"items"`
	}

	apiError struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
)

var _ playlist.Catalog = (*Client)(nil)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	rc := resty.New().
		SetHostURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc, key: conf.YoutubeAPIKey, logger: logger}
}

func (c *Client) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (playlist.Page, error) {
	var body playlistItemsResponse
	var apiErr apiError
	res, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":       "snippet",
			"playlistId": playlistID,
			"maxResults": strconv.Itoa(playlist.MaxPageSize),
			"pageToken":  pageToken,
			"key":        c.key,
		}).
		SetResult(&body).
		SetError(&apiErr).
		Get("/playlistItems")
	if err != nil {
		return playlist.Page{}, errors.Wrap(err, "calling playlistItems")
	}
	if res.IsError() {
		return playlist.Page{}, c.mapError(res, apiErr)
	}

	page := playlist.Page{NextPageToken: body.NextPageToken}
	for _, it := range body.Items {
		thumb := it.Snippet.Thumbnails.Medium.URL
		if thumb == "" {
			thumb = it.Snippet.Thumbnails.Default.URL
		}
		page.Items = append(page.Items, playlist.Item{
			VideoID:      it.Snippet.ResourceID.VideoID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			ThumbnailURL: thumb,
		})
	}
	return page, nil
}

func (c *Client) ListVideoStats(ctx context.Context, videoIDs []string) ([]playlist.VideoStats, error) {
	var body videosResponse
	var apiErr apiError
	res, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "contentDetails,statistics",
			"id":   strings.Join(videoIDs, ","),
			"key":  c.key,
		}).
		SetResult(&body).
		SetError(&apiErr).
		Get("/videos")
	if err != nil {
		return nil, errors.Wrap(err, "calling videos")
	}
	if res.IsError() {
		return nil, c.mapError(res, apiErr)
	}

	stats := make([]playlist.VideoStats, 0, len(body.Items))
	for _, it := range body.Items {
		stats = append(stats, playlist.VideoStats{
			ID:            it.ID,
			DurationToken: it.ContentDetails.Duration,
			ViewCount:     parseCount(it.Statistics.ViewCount),
			LikeCount:     parseCount(it.Statistics.LikeCount),
		})
	}
	return stats, nil
}

func (c *Client) mapError(res *resty.Response, apiErr apiError) error {
	reason := ""
	if len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}
	if res.StatusCode() == http.StatusNotFound || reason == "playlistNotFound" {
		return playlist.ErrNotFound
	}
	c.logger.Warn("video catalog error", res.StatusCode(), reason, apiErr.Error.Message)
	return errors.WithMessage(playlist.ErrUpstream, apiErr.Error.Message)
}

// parseCount tolerates the API omitting a counter (e.g. likes hidden).
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
