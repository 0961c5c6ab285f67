package assemble

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func optionValue(opts []string, key string) (string, bool) {
	prefix := key + "="
	for i := 0; i+1 < len(opts); i += 2 {
		if opts[i] == "-metadata" && strings.HasPrefix(opts[i+1], prefix) {
			return strings.TrimPrefix(opts[i+1], prefix), true
		}
	}
	return "", false
}

func TestMetadataOptionsFallbacks(t *testing.T) {
	opts := metadataOptions(Metadata{}, "/out/my_book.m4b")

	if v, _ := optionValue(opts, "title"); v != "my_book" {
		t.Fatalf("title fallback = %q, want file stem", v)
	}
	if v, _ := optionValue(opts, "artist"); v != "Unknown" {
		t.Fatalf("artist fallback = %q", v)
	}
	if v, _ := optionValue(opts, "album"); v != "Unknown" {
		t.Fatalf("album fallback = %q", v)
	}
	if v, _ := optionValue(opts, "date"); v != fmt.Sprintf("%d", time.Now().Year()) {
		t.Fatalf("date fallback = %q", v)
	}
	if v, _ := optionValue(opts, "genre"); v != "Audiobook" {
		t.Fatalf("genre fallback = %q", v)
	}
	if v, _ := optionValue(opts, "composer"); v != "Narrator" {
		t.Fatalf("composer fallback = %q", v)
	}
	if _, ok := optionValue(opts, "publisher"); ok {
		t.Fatal("publisher must be omitted when unset")
	}
}

func TestMetadataOptionsExplicit(t *testing.T) {
	meta := Metadata{
		Title:       "Dune",
		Artist:      "F. Herbert",
		Year:        "1965",
		Genre:       "Science Fiction",
		Publisher:   "Chilton",
		Description: strings.Repeat("x", 600),
	}
	opts := metadataOptions(meta, "")

	if v, _ := optionValue(opts, "title"); v != "Dune" {
		t.Fatalf("title = %q", v)
	}
	if v, _ := optionValue(opts, "album"); v != "Dune" {
		t.Fatalf("album should fall back to title, got %q", v)
	}
	if v, _ := optionValue(opts, "album_artist"); v != "F. Herbert" {
		t.Fatalf("album_artist = %q", v)
	}
	if v, _ := optionValue(opts, "publisher"); v != "Chilton" {
		t.Fatalf("publisher = %q", v)
	}
	if v, _ := optionValue(opts, "comment"); len(v) != 500 {
		t.Fatalf("description not truncated: %d chars", len(v))
	}
}

func TestMetadataOptionsTruncatesOnRuneBoundary(t *testing.T) {
	meta := Metadata{Title: "Dune", Description: strings.Repeat("é", 600)}
	opts := metadataOptions(meta, "")

	v, _ := optionValue(opts, "comment")
	if !utf8.ValidString(v) {
		t.Fatalf("comment is not valid UTF-8: %q", v)
	}
	if got := len([]rune(v)); got != 500 {
		t.Fatalf("expected 500 runes, got %d", got)
	}
}
