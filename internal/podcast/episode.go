// Package podcast turns submitted video links into entries of a per-user
// audio feed stored in an object-storage bucket.
package podcast

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Episode is the metadata for one ingested media item of a user's feed.
type Episode struct {
	FileSize     int64     `msgpack:"file_size"`
	FileURL      string    `msgpack:"file_url"`
	SourceID     string    `msgpack:"source_id"`
	CreatedAt    time.Time `msgpack:"created_at"`
	Title        string    `msgpack:"title"`
	OriginalLink string    `msgpack:"original_link"`
	MimeType     string    `msgpack:"mime_type"`
}

// encodeEpisodes serializes an episode list for storage.
func encodeEpisodes(list []Episode) ([]byte, error) {
	data, err := msgpack.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("podcast: encode episode list: %w", err)
	}
	return data, nil
}

// decodeEpisodes restores an episode list from its stored form.
func decodeEpisodes(data []byte) ([]Episode, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var list []Episode
	if err := msgpack.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("podcast: decode episode list: %w", err)
	}
	// Decoded timestamps come back in the local zone; stored times are UTC.
	for i := range list {
		list[i].CreatedAt = list[i].CreatedAt.UTC()
	}
	return list, nil
}

// Object keys under the bucket, all namespaced per user.

func metadataKey(user string) string { return user + "/metadata.mp" }

func audioKey(user, sourceID string) string { return fmt.Sprintf("%s/audio/%s.mp3", user, sourceID) }

func feedKey(user string) string { return user + "/feed.xml" }
