package podcast

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
)

// BuildFeed renders the full episode list as an RSS document. The list is
// already newest-first, and the feed preserves that order.
func BuildFeed(user, selfURL string, episodes []Episode) (string, error) {
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s's corner", user),
		Link:        &feeds.Link{Href: selfURL},
		Description: fmt.Sprintf("Audio versions of videos saved by %s", user),
		Created:     time.Now(),
	}
	for _, ep := range episodes {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       ep.Title,
			Link:        &feeds.Link{Href: ep.FileURL},
			Description: ep.OriginalLink,
			Id:          ep.SourceID,
			Created:     ep.CreatedAt,
			Enclosure: &feeds.Enclosure{
				Url:    ep.FileURL,
				Length: strconv.FormatInt(ep.FileSize, 10),
				Type:   ep.MimeType,
			},
		})
	}
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("podcast: build feed for %s: %w", user, err)
	}
	return rss, nil
}
