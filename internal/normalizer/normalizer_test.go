package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/models"
)

func TestPickID(t *testing.T) {
	n := New()

	tests := []struct {
		name     string
		raw      models.RawItem
		expected string
	}{
		{
			name:     "imdb field",
			raw:      models.RawItem{"imdb_id": "tt0133093", "id": 603.0},
			expected: "tt0133093",
		},
		{
			name:     "nested ids",
			raw:      models.RawItem{"ids": map[string]any{"imdb": "tt0903747", "tmdb": 1396.0, "trakt": 1388.0}},
			expected: "tt0903747",
		},
		{
			name:     "tt id field",
			raw:      models.RawItem{"id": "tt0111161"},
			expected: "tt0111161",
		},
		{
			name:     "tmdb fallback",
			raw:      models.RawItem{"tmdb_id": 603.0, "id": "abc"},
			expected: "tmdb:603",
		},
		{
			name:     "nested tmdb",
			raw:      models.RawItem{"ids": map[string]any{"tmdb": 1396.0, "trakt": 1388.0}},
			expected: "tmdb:1396",
		},
		{
			name:     "tvdb fallback",
			raw:      models.RawItem{"tvdb": "81189"},
			expected: "tvdb:81189",
		},
		{
			name:     "native id",
			raw:      models.RawItem{"id": "kitsu:7442"},
			expected: "kitsu:7442",
		},
		{
			name:     "invalid imdb falls through",
			raw:      models.RawItem{"imdb_id": "tt", "tmdb_id": "27205"},
			expected: "tmdb:27205",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := n.Normalize(tt.raw, "")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, item.ID)
		})
	}
}

func TestNormalizeSkipsItemsWithoutID(t *testing.T) {
	n := New()

	for _, raw := range []models.RawItem{
		nil,
		{},
		{"title": "Nameless"},
		{"tmdb_id": 0.0, "title": "Zero"},
	} {
		_, err := n.Normalize(raw, models.TypeMovie)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNormalizationSkip, apperrors.GetErrorCode(err))
	}
}

func TestClassify(t *testing.T) {
	n := New()

	tests := []struct {
		name     string
		raw      models.RawItem
		hint     string
		expected string
	}{
		{
			name:     "tracker movie envelope",
			raw:      models.RawItem{"type": "movie", "movie": map[string]any{"title": "Heat", "ids": map[string]any{"imdb": "tt0113277"}}},
			expected: models.TypeMovie,
		},
		{
			name:     "tracker show envelope",
			raw:      models.RawItem{"type": "show", "show": map[string]any{"title": "Dark", "ids": map[string]any{"imdb": "tt5753856"}}},
			hint:     models.TypeMovie,
			expected: models.TypeSeries,
		},
		{
			name:     "mediatype tag",
			raw:      models.RawItem{"imdb_id": "tt5753856", "mediatype": "show"},
			expected: models.TypeSeries,
		},
		{
			name:     "film tag",
			raw:      models.RawItem{"imdb_id": "tt0113277", "type": "film"},
			hint:     models.TypeSeries,
			expected: models.TypeMovie,
		},
		{
			name:     "air date heuristic",
			raw:      models.RawItem{"id": 1396.0, "first_air_date": "2008-01-20"},
			expected: models.TypeSeries,
		},
		{
			name:     "season count heuristic",
			raw:      models.RawItem{"id": "x1", "number_of_seasons": 3.0},
			expected: models.TypeSeries,
		},
		{
			name:     "episode title heuristic",
			raw:      models.RawItem{"id": "x2", "title": "Show Name S01E05"},
			expected: models.TypeSeries,
		},
		{
			name:     "release date implies movie",
			raw:      models.RawItem{"id": 603.0, "release_date": "1999-03-31"},
			hint:     models.TypeSeries,
			expected: models.TypeMovie,
		},
		{
			name:     "hint used when nothing else",
			raw:      models.RawItem{"id": "x3", "title": "Unknown"},
			hint:     models.TypeSeries,
			expected: models.TypeSeries,
		},
		{
			name:     "defaults to movie",
			raw:      models.RawItem{"id": "x4", "title": "Unknown"},
			hint:     models.TypeAll,
			expected: models.TypeMovie,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := n.Normalize(tt.raw, tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, item.Type)
		})
	}
}

func TestNormalizeCopiesFields(t *testing.T) {
	raw := models.RawItem{
		"imdb_id":       "tt0133093",
		"title":         "The Matrix",
		"release_date":  "1999-03-31",
		"poster_path":   "/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg",
		"backdrop_path": "https://img.example/bg.jpg",
		"overview":      "A hacker learns the truth.",
		"vote_average":  8.2,
		"genres":        []any{map[string]any{"name": "Action"}, map[string]any{"name": "Science Fiction"}},
		"cast":          []any{"Keanu Reeves", " ", "Carrie-Anne Moss"},
		"director":      "Lana Wachowski, Lilly Wachowski",
		"runtime":       "136 min",
	}

	item, err := Default().Normalize(raw, "")
	require.NoError(t, err)

	assert.Equal(t, "The Matrix", item.Name)
	assert.Equal(t, 1999, item.Year)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg", item.Poster)
	assert.Equal(t, "https://img.example/bg.jpg", item.Background)
	assert.Equal(t, "A hacker learns the truth.", item.Description)
	assert.InDelta(t, 8.2, item.Rating, 0.001)
	assert.Equal(t, []string{"Action", "Science Fiction"}, item.Genres)
	assert.Equal(t, []string{"Keanu Reeves", "Carrie-Anne Moss"}, item.Cast)
	assert.Equal(t, []string{"Lana Wachowski", "Lilly Wachowski"}, item.Director)
	assert.Equal(t, 136, item.Runtime)
	assert.Equal(t, models.TypeMovie, item.Type)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := models.RawItem{
		"type": "show",
		"show": map[string]any{
			"title": "Breaking Bad",
			"year":  2008.0,
			"ids":   map[string]any{"imdb": "tt0903747", "tmdb": 1396.0},
		},
	}

	n := New()
	first, err := n.Normalize(raw, models.TypeMovie)
	require.NoError(t, err)
	second, err := n.Normalize(raw, models.TypeMovie)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2008, first.Year)
	assert.Equal(t, "tt0903747", first.ID)
}

func TestNormalizePage(t *testing.T) {
	raws := []models.RawItem{
		{"imdb_id": "tt0133093", "type": "movie"},
		{"title": "broken"},
		{"imdb_id": "tt0903747", "type": "series"},
	}

	items, skipped := New().NormalizePage(raws, "")

	require.Len(t, items, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "tt0133093", items[0].ID)
	assert.Equal(t, "tt0903747", items[1].ID)
}
