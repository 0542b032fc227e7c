package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/glefebvre/listcatalog/internal/circuitbreaker"
	"github.com/glefebvre/listcatalog/internal/enrich"
	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
	"github.com/glefebvre/listcatalog/internal/retry"
)

const (
	serviceName     = "tmdb"
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultTimeout  = 10 * time.Second
	posterBaseURL   = "https://image.tmdb.org/t/p/w500"
	backdropBaseURL = "https://image.tmdb.org/t/p/original"
	maxBodyBytes    = 2 << 20
)

// Client handles TMDB API interactions
type Client struct {
	baseURL     string
	apiKey      string
	language    string
	httpClient  *http.Client
	retryConfig retry.Config
	breaker     *gobreaker.CircuitBreaker
}

// Config holds TMDB client configuration
type Config struct {
	APIKey   string
	Language string // e.g., "en-US", "fr-FR"
	Timeout  time.Duration
	// BaseURL overrides the public API root
	BaseURL     string
	RetryConfig retry.Config
	Breaker     circuitbreaker.Config
}

// MovieResult is a movie as returned by find and details endpoints
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"` // YYYY-MM-DD
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	Overview      string  `json:"overview"`
	VoteAverage   float64 `json:"vote_average"`
	GenreIDs      []int   `json:"genre_ids"`
	Genres        []Genre `json:"genres"`
	Runtime       *int    `json:"runtime"`
}

// TVShowResult is a show as returned by find and details endpoints
type TVShowResult struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	OriginalName   string  `json:"original_name"`
	FirstAirDate   string  `json:"first_air_date"` // YYYY-MM-DD
	PosterPath     *string `json:"poster_path"`
	BackdropPath   *string `json:"backdrop_path"`
	Overview       string  `json:"overview"`
	VoteAverage    float64 `json:"vote_average"`
	GenreIDs       []int   `json:"genre_ids"`
	Genres         []Genre `json:"genres"`
	EpisodeRunTime []int   `json:"episode_run_time"`
}

// Genre represents a TMDB genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FindResponse is the body of /find/{external_id}
type FindResponse struct {
	MovieResults []MovieResult  `json:"movie_results"`
	TVResults    []TVShowResult `json:"tv_results"`
}

// NewClient creates a new TMDB API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker = circuitbreaker.DefaultConfig()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryConfig: cfg.RetryConfig,
		breaker:     circuitbreaker.New(serviceName, cfg.Breaker),
	}
}

// Lookup implements enrich.Source for IMDb ids and tmdb:<n> ids
func (c *Client) Lookup(ctx context.Context, id, itemType string) (enrich.Metadata, error) {
	switch {
	case strings.HasPrefix(id, "tt"):
		return c.findByIMDbID(ctx, id, itemType)
	case strings.HasPrefix(id, "tmdb:"):
		n, err := strconv.Atoi(strings.TrimPrefix(id, "tmdb:"))
		if err != nil {
			return enrich.Metadata{}, nil
		}
		if itemType == models.TypeSeries {
			show, err := c.GetTVShowDetails(ctx, n)
			if err != nil {
				return notFoundIsUnknown(err)
			}
			return showMetadata(*show), nil
		}
		movie, err := c.GetMovieDetails(ctx, n)
		if err != nil {
			return notFoundIsUnknown(err)
		}
		return movieMetadata(*movie), nil
	}
	return enrich.Metadata{}, nil
}

func (c *Client) findByIMDbID(ctx context.Context, imdbID, itemType string) (enrich.Metadata, error) {
	res, err := c.Find(ctx, imdbID)
	if err != nil {
		return notFoundIsUnknown(err)
	}

	preferShow := itemType == models.TypeSeries
	switch {
	case preferShow && len(res.TVResults) > 0:
		return showMetadata(res.TVResults[0]), nil
	case !preferShow && len(res.MovieResults) > 0:
		return movieMetadata(res.MovieResults[0]), nil
	case len(res.MovieResults) > 0:
		return movieMetadata(res.MovieResults[0]), nil
	case len(res.TVResults) > 0:
		return showMetadata(res.TVResults[0]), nil
	}
	return enrich.Metadata{}, nil
}

func notFoundIsUnknown(err error) (enrich.Metadata, error) {
	if apperrors.GetErrorCode(err) == apperrors.CodeNotFound {
		return enrich.Metadata{}, nil
	}
	return enrich.Metadata{}, err
}

// Find resolves an IMDb id to TMDB movies and shows
func (c *Client) Find(ctx context.Context, imdbID string) (*FindResponse, error) {
	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var response FindResponse
	if err := c.makeRequest(ctx, "/find/"+url.PathEscape(imdbID), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetMovieDetails retrieves detailed information for a specific movie
func (c *Client) GetMovieDetails(ctx context.Context, movieID int) (*MovieResult, error) {
	var details MovieResult
	endpoint := fmt.Sprintf("/movie/%d", movieID)
	if err := c.makeRequest(ctx, endpoint, url.Values{}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetTVShowDetails retrieves detailed information for a specific TV show
func (c *Client) GetTVShowDetails(ctx context.Context, tvShowID int) (*TVShowResult, error) {
	var details TVShowResult
	endpoint := fmt.Sprintf("/tv/%d", tvShowID)
	if err := c.makeRequest(ctx, endpoint, url.Values{}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// makeRequest performs a GET against the API through the circuit breaker, retrying
// transient failures
func (c *Client) makeRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if c.apiKey == "" {
		return apperrors.UnauthorizedError(serviceName)
	}

	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	err := retry.Do(ctx, c.retryConfig, func() error {
		_, err := circuitbreaker.Execute(c.breaker, func() (struct{}, error) {
			return struct{}{}, c.get(ctx, requestURL, result)
		})
		return err
	}, apperrors.IsRetryable)

	if err != nil {
		logger.AppLogger().WithFields(map[string]interface{}{
			"endpoint": endpoint,
			"error":    err,
		}).DebugContext(ctx, "TMDB API request failed")
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, requestURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build TMDB request")
	}
	req.Header.Set("Accept-Language", c.language)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.FromTransport(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.FromTransport(serviceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromHTTPStatus(serviceName, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return apperrors.ParseError("failed to unmarshal TMDB response", err)
	}
	return nil
}

func movieMetadata(m MovieResult) enrich.Metadata {
	meta := enrich.Metadata{
		Found:       true,
		Name:        m.Title,
		Year:        ExtractYear(m.ReleaseDate),
		Poster:      imageURL(posterBaseURL, m.PosterPath),
		Background:  imageURL(backdropBaseURL, m.BackdropPath),
		Description: m.Overview,
		Rating:      m.VoteAverage,
		Genres:      GenreNames(m.Genres, m.GenreIDs),
	}
	if m.Runtime != nil {
		meta.Runtime = *m.Runtime
	}
	return meta
}

func showMetadata(s TVShowResult) enrich.Metadata {
	meta := enrich.Metadata{
		Found:       true,
		Name:        s.Name,
		Year:        ExtractYear(s.FirstAirDate),
		Poster:      imageURL(posterBaseURL, s.PosterPath),
		Background:  imageURL(backdropBaseURL, s.BackdropPath),
		Description: s.Overview,
		Rating:      s.VoteAverage,
		Genres:      GenreNames(s.Genres, s.GenreIDs),
	}
	if len(s.EpisodeRunTime) > 0 {
		meta.Runtime = s.EpisodeRunTime[0]
	}
	return meta
}

func imageURL(base string, path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	return base + *path
}

// ExtractYear extracts year from TMDB date string (YYYY-MM-DD)
func ExtractYear(dateStr string) int {
	if len(dateStr) < 4 {
		return 0
	}
	year, err := strconv.Atoi(dateStr[:4])
	if err != nil {
		return 0
	}
	return year
}

// GenreNames returns the names of detailed genres, or maps search-result genre ids
func GenreNames(genres []Genre, ids []int) []string {
	var names []string
	for _, g := range genres {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	if len(names) > 0 {
		return names
	}
	for _, id := range ids {
		if name, ok := genreByID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

var genreByID = map[int]string{
	12:    "Adventure",
	14:    "Fantasy",
	16:    "Animation",
	18:    "Drama",
	27:    "Horror",
	28:    "Action",
	35:    "Comedy",
	36:    "History",
	37:    "Western",
	53:    "Thriller",
	80:    "Crime",
	99:    "Documentary",
	878:   "Science Fiction",
	9648:  "Mystery",
	10402: "Music",
	10749: "Romance",
	10751: "Family",
	10752: "War",
	10759: "Action & Adventure",
	10762: "Kids",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
	10770: "TV Movie",
}
