package tube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrNotOk         = errors.New("unexpected non 200 status code")
)

// Video is one discovery candidate. Ephemeral, lives for a single run.
type Video struct {
	ID          string
	Title       string
	PublishedAt time.Time
	URL         string
}

type Client struct {
	Key     string
	BaseURL string
	HTTP    *http.Client

	// MaxDuration is the short-form ceiling; longer videos are filtered out.
	MaxDuration time.Duration
}

func NewClient(key string, maxDuration time.Duration) *Client {
	return &Client{
		Key:         key,
		BaseURL:     DefaultBaseURL,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
		MaxDuration: maxDuration,
	}
}

// More is returned by the API, these just outline what we actually use.

type resSearch struct {
	Items []searchItem
}

type searchItem struct {
	Id struct {
		VideoId string
	}
	Snippet struct {
		Title       string
		PublishedAt string
	}
}

type resVideos struct {
	Items []struct {
		ContentDetails struct {
			Duration string
		}
	}
}

// RecentShorts lists videos published after since, most recent first,
// keeping only those whose duration is known and within the ceiling.
// A failed duration lookup excludes the candidate rather than admitting
// a possibly long video.
func (c *Client) RecentShorts(ctx context.Context, channelID string, since time.Time, max int) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("channelId", channelID)
	q.Set("publishedAfter", since.UTC().Format(time.RFC3339))
	q.Set("order", "date")
	q.Set("type", "video")
	q.Set("maxResults", fmt.Sprintf("%d", max))
	q.Set("key", c.Key)

	var result resSearch
	if err := c.getJSON(ctx, c.BaseURL+"/search?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("searching channel %q: %w", channelID, err)
	}

	videos := make([]Video, 0, len(result.Items))
	for _, item := range result.Items {
		id := item.Id.VideoId
		if id == "" {
			continue
		}

		dur, err := c.videoDuration(ctx, id)
		if err != nil || dur > c.MaxDuration {
			continue
		}

		published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}

		videos = append(videos, Video{
			ID:          id,
			Title:       item.Snippet.Title,
			PublishedAt: published,
			URL:         "https://youtube.com/watch?v=" + id,
		})
	}

	return videos, nil
}

// Uses 1 quota.
func (c *Client) videoDuration(ctx context.Context, id string) (time.Duration, error) {
	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", id)
	q.Set("key", c.Key)

	var result resVideos
	if err := c.getJSON(ctx, c.BaseURL+"/videos?"+q.Encode(), &result); err != nil {
		return 0, fmt.Errorf("retrieving video %q details: %w", id, err)
	}

	if len(result.Items) == 0 {
		return 0, fmt.Errorf("video %q has no items in response", id)
	}

	return ParseISODuration(result.Items[0].ContentDetails.Duration)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusForbidden {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("status code %d: %q: %w", res.StatusCode, string(body), ErrNotOk)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unmarshalling response: %w", err)
	}

	return nil
}
