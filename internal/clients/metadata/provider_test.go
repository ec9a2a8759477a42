package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/internal/config"
	"marquee/internal/models"
	"marquee/internal/utils"
)

func testTMDBConfig(baseURL string) config.TMDBConfig {
	return config.TMDBConfig{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		Language:          "es-ES",
		VideoLanguages:    "en,es",
		ItemLimit:         5,
		RequestsPerSecond: 1000,
		RetryAttempts:     3,
	}
}

func newTestClient(t *testing.T, routes map[string]string) (*TMDBClient, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	client.retryDelay = time.Millisecond
	return client, srv
}

const trendingMovies = `{"results":[
	{"id":1,"media_type":"movie","title":"Dune","overview":"Sand","backdrop_path":"/b1.jpg","poster_path":"/p1.jpg","vote_average":8.4,"release_date":"2024-02-27"},
	{"id":2,"media_type":"person","name":"Someone"},
	{"media_type":"movie","title":"No id"},
	{"id":3,"media_type":"movie","vote_average":"great","release_date":"bad"},
	{"id":4,"media_type":"movie","title":"Loud","vote_average":12.5}
]}`

func movieRoutes() map[string]string {
	return map[string]string{
		"/trending/movie/week": trendingMovies,
		"/movie/1/videos": `{"results":[
			{"key":"abc","name":"Tráiler Oficial","site":"YouTube","type":"Trailer","official":true,"iso_639_1":"es","iso_3166_1":"MX"},
			{"key":"","name":"broken","site":"YouTube","type":"Trailer"}
		]}`,
		"/movie/1":        `{"runtime":166,"genres":[{"id":1,"name":"A"},{"id":2,"name":"B"},{"id":3,"name":"C"},{"id":4,"name":"D"},{"id":5,"name":"E"},{"id":6,"name":"F"}]}`,
		"/movie/1/images": `{"logos":[{"file_path":"/en.png","iso_639_1":"en"},{"file_path":"/es.png","iso_639_1":"es"}]}`,
		"/movie/1/release_dates": `{"results":[
			{"iso_3166_1":"US","release_dates":[{"certification":"PG-13"}]},
			{"iso_3166_1":"ES","release_dates":[{"certification":""},{"certification":"16"}]}
		]}`,
		"/movie/3/images":        `{"logos":[{"file_path":"/fr.png","iso_639_1":"fr"}]}`,
		"/movie/3/release_dates": `{"results":[{"iso_3166_1":"US","release_dates":[{"certification":"PG-13"}]}]}`,
		"/movie/4/release_dates": `{"results":[{"iso_3166_1":"US","release_dates":[{"certification":"XYZ"}]}]}`,
	}
}

func TestProvider_Items(t *testing.T) {
	client, _ := newTestClient(t, movieRoutes())
	provider := NewProvider(client, testTMDBConfig(""), utils.NewNopLogger())

	items := provider.Items(context.Background(), Selector{Kind: "movie", Window: "week"})
	require.Len(t, items, 3)

	dune := items[0]
	assert.Equal(t, 1, dune.ID)
	assert.Equal(t, models.MediaKindMovie, dune.Kind)
	assert.Equal(t, "Dune", dune.DisplayTitle)
	assert.Equal(t, 2024, dune.ReleaseYear)
	assert.Equal(t, 166, dune.RuntimeMinutes)
	assert.Equal(t, "2h 46m", dune.DisplayRuntime())
	assert.Len(t, dune.Genres, 5)
	assert.Equal(t, "/es.png", dune.TitleLogo)
	assert.Equal(t, "16+", dune.AgeRating)
	assert.Equal(t, "https://www.themoviedb.org/movie/1", dune.TMDBURL)
	require.Len(t, dune.CandidateClips, 1)
	clip := dune.CandidateClips[0]
	assert.Equal(t, "abc", clip.ExternalKey)
	assert.Equal(t, "es", clip.LanguageCode)
	assert.Equal(t, "MX", clip.RegionCode)
	assert.Equal(t, models.ClipKindTrailer, clip.Kind)
	assert.True(t, clip.IsOfficial)

	// Malformed fields fall back to defaults; failed lookups leave the item in place.
	odd := items[1]
	assert.Equal(t, 3, odd.ID)
	assert.Equal(t, "Untitled", odd.DisplayTitle)
	assert.Zero(t, odd.Rating)
	assert.Zero(t, odd.ReleaseYear)
	assert.Equal(t, "/fr.png", odd.TitleLogo)
	assert.Equal(t, "12+", odd.AgeRating)
	assert.Empty(t, odd.CandidateClips)
	assert.NotNil(t, odd.CandidateClips)

	loud := items[2]
	assert.Equal(t, 10.0, loud.Rating)
	assert.Equal(t, "XYZ", loud.AgeRating)
	assert.Equal(t, "", loud.TitleLogo)
}

func TestProvider_ItemLimit(t *testing.T) {
	client, _ := newTestClient(t, movieRoutes())
	provider := NewProvider(client, testTMDBConfig(""), utils.NewNopLogger())

	items := provider.Items(context.Background(), Selector{Kind: "movie", Window: "week", Limit: 1})
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].ID)
}

func TestProvider_Series(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"/trending/tv/day":      `{"results":[{"id":9,"name":"Show","first_air_date":"2019-05-01","vote_average":7.1}]}`,
		"/tv/9":                 `{"number_of_seasons":3,"number_of_episodes":30,"genres":[{"id":1,"name":"Drama"}]}`,
		"/tv/9/content_ratings": `{"results":[{"iso_3166_1":"US","rating":"TV-MA"}]}`,
		"/tv/9/videos":          `{"results":[]}`,
		"/tv/9/images":          `{"logos":[]}`,
	})
	provider := NewProvider(client, testTMDBConfig(""), utils.NewNopLogger())

	items := provider.Items(context.Background(), Selector{Kind: "tv", Window: "day"})
	require.Len(t, items, 1)
	show := items[0]
	assert.Equal(t, models.MediaKindSeries, show.Kind)
	assert.Equal(t, "Show", show.DisplayTitle)
	assert.Equal(t, 2019, show.ReleaseYear)
	assert.Equal(t, 3, show.SeasonCount)
	assert.Equal(t, 30, show.EpisodeCount)
	assert.Equal(t, "3 Seasons", show.DisplayRuntime())
	assert.Equal(t, "18+", show.AgeRating)
	assert.Equal(t, "https://www.themoviedb.org/tv/9", show.TMDBURL)
}

func TestProvider_MissingKeyYieldsEmpty(t *testing.T) {
	cfg := testTMDBConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	client := NewTMDBClient(cfg, utils.NewNopLogger())
	provider := NewProvider(client, cfg, utils.NewNopLogger())

	items := provider.Items(context.Background(), Selector{Kind: "movie", Window: "week"})
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.False(t, client.Configured())
}

func TestProvider_TrendingFailureYieldsEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	client.retryDelay = time.Millisecond
	provider := NewProvider(client, testTMDBConfig(srv.URL), utils.NewNopLogger())

	items := provider.Items(context.Background(), Selector{Kind: "movie", Window: "week"})
	assert.Empty(t, items)
	assert.Equal(t, int32(3), hits.Load())
}

func TestProvider_UndecodableTrendingYieldsEmpty(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{"/trending/movie/week": `{"results": "nope"`})
	provider := NewProvider(client, testTMDBConfig(""), utils.NewNopLogger())

	assert.Empty(t, provider.Items(context.Background(), Selector{Kind: "movie", Window: "week"}))
}

func TestTMDBClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"key":"k","site":"YouTube","type":"Teaser"}]}`))
	}))
	defer srv.Close()

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	client.retryDelay = time.Millisecond

	videos, err := client.Videos(context.Background(), models.MediaKindMovie, 1)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestTMDBClient_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"status_message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	client.retryDelay = time.Millisecond

	_, err := client.Details(context.Background(), models.MediaKindMovie, 1)
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, int32(1), hits.Load())
	assert.NotContains(t, err.Error(), "test-key")
}

func TestTMDBClient_PassesLanguageParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/7/videos", r.URL.Path)
		assert.Equal(t, "es-ES", r.URL.Query().Get("language"))
		assert.Equal(t, "en,es", r.URL.Query().Get("include_video_language"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	_, err := client.Videos(context.Background(), models.MediaKindMovie, 7)
	require.NoError(t, err)
}

func TestNormalizeAgeRating(t *testing.T) {
	tests := map[string]string{
		"APTA": "0+", "G": "0+", "TV-Y": "0+", "TV-G": "0+",
		"7": "7+", "PG": "7+", "TV-Y7": "7+", "TV-PG": "7+",
		"12": "12+", "PG-13": "12+",
		"14": "14+", "TV-14": "14+",
		"16": "16+", "R": "16+",
		"18": "18+", "NC-17": "18+", "TV-MA": "18+",
		"A": "A", "": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeAgeRating(in), in)
	}
}

func TestPickLogo(t *testing.T) {
	logos := []ImageResult{{FilePath: "/fr.png", Language: "fr"}, {FilePath: "/en.png", Language: "en"}}
	assert.Equal(t, "/en.png", pickLogo(logos, "es-ES"))
	assert.Equal(t, "/fr.png", pickLogo(logos, "fr-FR"))
	assert.Equal(t, "/fr.png", pickLogo(logos[:1], "es-ES"))
	assert.Equal(t, "", pickLogo(nil, "es-ES"))
}

func TestTMDBClient_HonoursRetryAfter(t *testing.T) {
	var hits atomic.Int32
	var first, second atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			first.Store(time.Now().UnixNano())
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		second.Store(time.Now().UnixNano())
		_, _ = w.Write([]byte(`{"results":[{"key":"k","site":"YouTube","type":"Trailer"}]}`))
	}))
	defer srv.Close()

	client := NewTMDBClient(testTMDBConfig(srv.URL), utils.NewNopLogger())
	client.retryDelay = time.Millisecond

	videos, err := client.Videos(context.Background(), models.MediaKindMovie, 1)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, int32(2), hits.Load())
	gap := time.Duration(second.Load() - first.Load())
	assert.GreaterOrEqual(t, gap, 900*time.Millisecond, "retry waited for the Retry-After header")
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
		{"2", 2 * time.Second},
		{" 5 ", 5 * time.Second},
		{"3600", maxRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.in))
		})
	}
}
