package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/models"
)

// Image base used when a provider hands out bare metadata-database paths
const imageBaseURL = "https://image.tmdb.org/t/p/w500"

// Normalizer maps provider items into canonical records
type Normalizer struct {
	imdbPattern           *regexp.Regexp
	yearPattern           *regexp.Regexp
	seasonEpisodePatterns []*regexp.Regexp
}

// New creates a Normalizer with precompiled patterns
func New() *Normalizer {
	return &Normalizer{
		imdbPattern:           regexp.MustCompile(`^tt\d{5,}$`),
		yearPattern:           regexp.MustCompile(`^(\d{4})`),
		seasonEpisodePatterns: compileSeasonEpisodePatterns(),
	}
}

var defaultNormalizer = New()

// Default returns the shared Normalizer. It holds no mutable state.
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize maps one raw provider item. hint is the content type the request was made
// for and is only used when the item carries no type information of its own. Items
// without a usable identifier are rejected with a NORMALIZATION_SKIP error.
func (n *Normalizer) Normalize(raw models.RawItem, hint string) (models.CanonicalItem, error) {
	if len(raw) == 0 {
		return models.CanonicalItem{}, apperrors.NormalizationSkip("empty item")
	}

	item, envelopeType := unwrap(raw)

	id := n.pickID(item)
	if id == "" {
		return models.CanonicalItem{}, apperrors.NormalizationSkip("item has no usable identifier").
			WithContext("title", stringField(item, "title", "name"))
	}

	out := models.CanonicalItem{
		ID:          id,
		Type:        n.classify(item, envelopeType, hint),
		Name:        stringField(item, "title", "name", "original_title", "original_name"),
		Year:        n.year(item),
		ReleaseInfo: stringField(item, "releaseInfo", "release_info"),
		Poster:      imageField(item, "poster", "poster_path", "poster_url"),
		Background:  imageField(item, "background", "backdrop", "backdrop_path", "fanart"),
		Logo:        imageField(item, "logo", "logo_path"),
		Description: stringField(item, "description", "overview", "plot"),
		Rating:      floatField(item, "imdbRating", "imdb_rating", "rating", "vote_average"),
		Genres:      namesField(item, "genres", "genre"),
		Cast:        namesField(item, "cast", "actors"),
		Director:    namesField(item, "director", "directors"),
		Writer:      namesField(item, "writer", "writers"),
		Runtime:     minutesField(item, "runtime", "duration"),
		Status:      stringField(item, "status"),
	}

	return out, nil
}

// NormalizePage maps a page of raw items, dropping the ones that cannot be normalized.
// It returns the kept items and the number of dropped ones.
func (n *Normalizer) NormalizePage(raws []models.RawItem, hint string) ([]models.CanonicalItem, int) {
	items := make([]models.CanonicalItem, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		item, err := n.Normalize(raw, hint)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

// unwrap returns the inner object of tracker-style envelopes such as
// {"type":"movie","movie":{...}} together with the type implied by the envelope.
func unwrap(raw models.RawItem) (models.RawItem, string) {
	for _, key := range []string{"movie", "show", "series"} {
		inner, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		merged := models.RawItem(inner)
		if key == "movie" {
			return merged, models.TypeMovie
		}
		return merged, models.TypeSeries
	}
	return raw, ""
}

// pickID prefers an IMDb id, then metadata-database ids, then the provider-native id
func (n *Normalizer) pickID(item models.RawItem) string {
	ids, _ := item["ids"].(map[string]any)

	for _, candidate := range []string{
		stringField(item, "imdb_id", "imdbid", "imdbId", "imdb"),
		stringField(ids, "imdb"),
		stringField(item, "id"),
	} {
		if n.imdbPattern.MatchString(candidate) {
			return candidate
		}
	}

	if tmdb := firstNonEmpty(stringField(item, "tmdb_id", "tmdbId", "tmdb"), stringField(ids, "tmdb")); tmdb != "" && tmdb != "0" {
		return "tmdb:" + tmdb
	}
	if tvdb := firstNonEmpty(stringField(item, "tvdb_id", "tvdbId", "tvdb"), stringField(ids, "tvdb")); tvdb != "" && tvdb != "0" {
		return "tvdb:" + tvdb
	}

	return firstNonEmpty(stringField(item, "id"), stringField(ids, "trakt", "slug"))
}

// classify resolves the content type: explicit tag, then structural heuristics, then the
// request hint, then movie.
func (n *Normalizer) classify(item models.RawItem, envelopeType, hint string) string {
	if envelopeType != "" {
		return envelopeType
	}

	if t := typeTag(stringField(item, "type", "mediatype", "media_type", "mediaType")); t != "" {
		return t
	}

	if n.looksEpisodic(item) {
		return models.TypeSeries
	}
	if _, ok := item["release_date"]; ok {
		return models.TypeMovie
	}

	switch hint {
	case models.TypeMovie, models.TypeSeries:
		return hint
	}
	return models.TypeMovie
}

// looksEpisodic reports structural evidence of a series
func (n *Normalizer) looksEpisodic(item models.RawItem) bool {
	for _, key := range []string{
		"first_air_date", "first_aired", "last_air_date", "next_episode_to_air",
		"number_of_seasons", "number_of_episodes", "seasons", "aired_episodes", "episode_count",
	} {
		if v, ok := item[key]; ok && v != nil {
			return true
		}
	}

	title := stringField(item, "title", "name")
	for _, pattern := range n.seasonEpisodePatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// year reads an explicit year or the leading digits of a release date
func (n *Normalizer) year(item models.RawItem) int {
	if y := intField(item, "year"); y > 0 {
		return y
	}
	date := stringField(item, "release_date", "first_air_date", "released", "first_aired", "releaseInfo")
	if m := n.yearPattern.FindStringSubmatch(date); len(m) == 2 {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return 0
}

func typeTag(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "movie", "movies", "film":
		return models.TypeMovie
	case "show", "shows", "series", "tv", "tvshow", "episode":
		return models.TypeSeries
	}
	return ""
}

// compileSeasonEpisodePatterns returns the precompiled season/episode title patterns
func compileSeasonEpisodePatterns() []*regexp.Regexp {
	patterns := []string{
		// S01E05, S1E5, s1e5
		`(?i)\bs(\d{1,2})\s*-?\s*e(\d{1,3})\b`,
		// 1x05
		`\b(\d{1,2})[xX](\d{2,3})\b`,
		// Season 1 Episode 5
		`(?i)season\s*(\d{1,2})\s*episode\s*(\d{1,3})`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
