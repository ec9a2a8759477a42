package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"marquee/internal/config"
	"marquee/internal/models"
	"marquee/internal/utils"
)

const maxRetryAfter = 10 * time.Second

// StatusError is a non-2xx answer from TMDB.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type retryAfterError struct {
	*StatusError
	wait time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.StatusError }

type TMDBClient struct {
	apiKey         string
	baseURL        string
	language       string
	videoLanguages string
	httpClient     *http.Client
	limiter        *rate.Limiter
	attempts       uint
	retryDelay     time.Duration
	logger         *utils.Logger
}

func NewTMDBClient(cfg config.TMDBConfig, logger *utils.Logger) *TMDBClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 40
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	return &TMDBClient{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		language:       cfg.Language,
		videoLanguages: cfg.VideoLanguages,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		attempts:   attempts,
		retryDelay: 300 * time.Millisecond,
		logger:     logger.Component("tmdb"),
	}
}

// Configured reports whether an API key is present.
func (t *TMDBClient) Configured() bool {
	return t.apiKey != ""
}

func (t *TMDBClient) Trending(ctx context.Context, kind, window string) ([]TrendingResult, error) {
	var page struct {
		Results []json.RawMessage `json:"results"`
	}
	params := url.Values{}
	params.Set("language", t.language)
	if err := t.get(ctx, "trending", fmt.Sprintf("/trending/%s/%s", kind, window), params, &page); err != nil {
		return nil, err
	}

	results := make([]TrendingResult, 0, len(page.Results))
	for _, raw := range page.Results {
		r, ok := decodeTrending(raw)
		if !ok {
			t.logger.Debug().Msg("skipping malformed trending entry")
			continue
		}
		if r.MediaType == "" && kind != "all" {
			r.MediaType = kind
		}
		results = append(results, r)
	}
	return results, nil
}

func (t *TMDBClient) Videos(ctx context.Context, kind models.MediaKind, id int) ([]VideoResult, error) {
	var page struct {
		Results []struct {
			Key      string `json:"key"`
			Name     string `json:"name"`
			Site     string `json:"site"`
			Type     string `json:"type"`
			Official bool   `json:"official"`
			ISO639   string `json:"iso_639_1"`
			ISO3166  string `json:"iso_3166_1"`
		} `json:"results"`
	}
	params := url.Values{}
	params.Set("language", t.language)
	if t.videoLanguages != "" {
		params.Set("include_video_language", t.videoLanguages)
	}
	if err := t.get(ctx, "videos", fmt.Sprintf("/%s/%d/videos", kind.TMDBPath(), id), params, &page); err != nil {
		return nil, err
	}

	videos := make([]VideoResult, 0, len(page.Results))
	for _, v := range page.Results {
		videos = append(videos, VideoResult{
			Key:      v.Key,
			Name:     v.Name,
			Site:     v.Site,
			Type:     v.Type,
			Official: v.Official,
			Language: v.ISO639,
			Region:   v.ISO3166,
		})
	}
	return videos, nil
}

func (t *TMDBClient) Details(ctx context.Context, kind models.MediaKind, id int) (*DetailsResult, error) {
	var body struct {
		Runtime          int            `json:"runtime"`
		NumberOfSeasons  int            `json:"number_of_seasons"`
		NumberOfEpisodes int            `json:"number_of_episodes"`
		Genres           []models.Genre `json:"genres"`
	}
	params := url.Values{}
	params.Set("language", t.language)
	if err := t.get(ctx, "details", fmt.Sprintf("/%s/%d", kind.TMDBPath(), id), params, &body); err != nil {
		return nil, err
	}
	return &DetailsResult{
		Runtime:          body.Runtime,
		NumberOfSeasons:  body.NumberOfSeasons,
		NumberOfEpisodes: body.NumberOfEpisodes,
		Genres:           body.Genres,
	}, nil
}

func (t *TMDBClient) Logos(ctx context.Context, kind models.MediaKind, id int) ([]ImageResult, error) {
	var body struct {
		Logos []struct {
			FilePath string `json:"file_path"`
			ISO639   string `json:"iso_639_1"`
		} `json:"logos"`
	}
	if err := t.get(ctx, "images", fmt.Sprintf("/%s/%d/images", kind.TMDBPath(), id), url.Values{}, &body); err != nil {
		return nil, err
	}
	logos := make([]ImageResult, 0, len(body.Logos))
	for _, l := range body.Logos {
		if l.FilePath == "" {
			continue
		}
		logos = append(logos, ImageResult{FilePath: l.FilePath, Language: l.ISO639})
	}
	return logos, nil
}

// Certifications uses release_dates for movies and content_ratings for series.
func (t *TMDBClient) Certifications(ctx context.Context, kind models.MediaKind, id int) (map[string]string, error) {
	certs := make(map[string]string)

	if kind == models.MediaKindSeries {
		var body struct {
			Results []struct {
				Country string `json:"iso_3166_1"`
				Rating  string `json:"rating"`
			} `json:"results"`
		}
		if err := t.get(ctx, "content_ratings", fmt.Sprintf("/tv/%d/content_ratings", id), url.Values{}, &body); err != nil {
			return nil, err
		}
		for _, r := range body.Results {
			if r.Rating != "" && certs[r.Country] == "" {
				certs[r.Country] = r.Rating
			}
		}
		return certs, nil
	}

	var body struct {
		Results []struct {
			Country      string `json:"iso_3166_1"`
			ReleaseDates []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	}
	if err := t.get(ctx, "release_dates", fmt.Sprintf("/movie/%d/release_dates", id), url.Values{}, &body); err != nil {
		return nil, err
	}
	for _, r := range body.Results {
		for _, d := range r.ReleaseDates {
			if d.Certification != "" {
				certs[r.Country] = d.Certification
				break
			}
		}
	}
	return certs, nil
}

// get performs a rate-limited GET, retrying 429 and 5xx with backoff.
// The endpoint name is used for logs and metrics; the URL carries the key
// and is never logged.
func (t *TMDBClient) get(ctx context.Context, endpoint, path string, params url.Values, v any) error {
	if t.apiKey == "" {
		return ErrNotConfigured
	}
	params.Set("api_key", t.apiKey)
	target := t.baseURL + path + "?" + params.Encode()

	return retry.Do(
		func() error {
			if err := t.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := t.httpClient.Do(req)
			if err != nil {
				tmdbRequests.WithLabelValues(endpoint, "error").Inc()
				return fmt.Errorf("tmdb %s: %w", endpoint, stripURL(err))
			}
			defer resp.Body.Close()
			tmdbRequests.WithLabelValues(endpoint, statusClass(resp.StatusCode)).Inc()

			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				statusErr := &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
				t.logger.Debug().
					Str(utils.FieldEndpoint, endpoint).
					Int(utils.FieldStatus, resp.StatusCode).
					Msg("tmdb returned non-success status")
				if !statusErr.retryable() {
					return retry.Unrecoverable(statusErr)
				}
				if wait := parseRetryAfter(resp.Header.Get("Retry-After")); wait > 0 {
					return &retryAfterError{StatusError: statusErr, wait: wait}
				}
				return statusErr
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb %s: %w", endpoint, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(t.attempts),
		retry.Delay(t.retryDelay),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			var ra *retryAfterError
			if errors.As(err, &ra) {
				return ra.wait
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Warn().Err(err).
				Str(utils.FieldEndpoint, endpoint).
				Uint("attempt", n+1).
				Msg("tmdb request failed, retrying")
		}),
	)
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	wait := time.Duration(secs) * time.Second
	if wait > maxRetryAfter {
		return maxRetryAfter
	}
	return wait
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// stripURL drops the request URL (and with it the api key) from transport errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// decodeTrending reads one entry field by field so a single bad field does
// not discard the whole entry.
func decodeTrending(raw json.RawMessage) (TrendingResult, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return TrendingResult{}, false
	}
	r := TrendingResult{
		ID:           intField(fields, "id"),
		MediaType:    stringField(fields, "media_type"),
		Title:        firstString(fields, "title", "name"),
		Overview:     stringField(fields, "overview"),
		BackdropPath: stringField(fields, "backdrop_path"),
		PosterPath:   stringField(fields, "poster_path"),
		VoteAverage:  floatField(fields, "vote_average"),
		ReleaseDate:  firstString(fields, "release_date", "first_air_date"),
	}
	return r, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := stringField(fields, k); s != "" {
			return s
		}
	}
	return ""
}

func floatField(fields map[string]json.RawMessage, key string) float64 {
	var f float64
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &f)
	}
	return f
}

func intField(fields map[string]json.RawMessage, key string) int {
	f := floatField(fields, key)
	if f <= 0 || f != float64(int(f)) {
		return 0
	}
	return int(f)
}
