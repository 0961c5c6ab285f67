package assemble

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// metadataOptions builds the muxer's tag arguments. Audiobook players expect
// a full tag set, so missing fields fall back rather than being omitted.
func metadataOptions(meta Metadata, outputPath string) []string {
	var opts []string
	tag := func(key, value string) {
		opts = append(opts, "-metadata", fmt.Sprintf("%s=%s", key, value))
	}

	title := meta.Title
	if title == "" && outputPath != "" {
		base := filepath.Base(outputPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if title != "" {
		tag("title", title)
	}

	artist := meta.Artist
	if artist == "" {
		artist = "Unknown"
	}
	tag("artist", artist)

	album := meta.Album
	if album == "" {
		album = meta.Title
	}
	if album == "" {
		album = "Unknown"
	}
	tag("album", album)

	year := meta.Year
	if year == "" {
		year = fmt.Sprintf("%d", time.Now().Year())
	}
	tag("date", year)
	tag("album_artist", artist)

	composer := meta.Composer
	if composer == "" {
		composer = "Narrator"
	}
	tag("composer", composer)

	genre := meta.Genre
	if genre == "" {
		genre = "Audiobook"
	}
	tag("genre", genre)

	if meta.Publisher != "" {
		tag("publisher", meta.Publisher)
	}
	if meta.Description != "" {
		desc := meta.Description
		// Truncate on a rune boundary so the tag value stays valid UTF-8.
		if runes := []rune(desc); len(runes) > 500 {
			desc = string(runes[:500])
		}
		tag("comment", desc)
	}
	return opts
}
