package metadata

import (
	"context"
	"errors"

	"marquee/internal/models"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("metadata: api key not configured")

// Client is the raw catalog API the Provider builds items from.
type Client interface {
	// Trending lists trending titles. kind is movie, tv or all; window is day or week.
	Trending(ctx context.Context, kind, window string) ([]TrendingResult, error)
	Videos(ctx context.Context, kind models.MediaKind, id int) ([]VideoResult, error)
	Details(ctx context.Context, kind models.MediaKind, id int) (*DetailsResult, error)
	Logos(ctx context.Context, kind models.MediaKind, id int) ([]ImageResult, error)
	// Certifications maps country code to the first non-empty rating for id.
	Certifications(ctx context.Context, kind models.MediaKind, id int) (map[string]string, error)
}

// TrendingResult is one decoded trending entry. Fields TMDB sent with the
// wrong type are left at their zero value.
type TrendingResult struct {
	ID           int
	MediaType    string
	Title        string
	Overview     string
	BackdropPath string
	PosterPath   string
	VoteAverage  float64
	ReleaseDate  string
}

type VideoResult struct {
	Key      string
	Name     string
	Site     string
	Type     string
	Official bool
	Language string
	Region   string
}

type DetailsResult struct {
	Runtime          int
	NumberOfSeasons  int
	NumberOfEpisodes int
	Genres           []models.Genre
}

type ImageResult struct {
	FilePath string
	Language string
}
