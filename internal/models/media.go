package models

import (
	"fmt"
	"math"
	"strings"
)

type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// TMDBPath returns the path segment TMDB uses for this kind.
func (k MediaKind) TMDBPath() string {
	if k == MediaKindSeries {
		return "tv"
	}
	return "movie"
}

// ParseMediaKind accepts both our names and TMDB's ("tv").
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return MediaKindMovie, nil
	case "series", "tv", "show", "tvshow":
		return MediaKindSeries, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

type ClipKind string

const (
	ClipKindTrailer ClipKind = "trailer"
	ClipKindTeaser  ClipKind = "teaser"
	ClipKindClip    ClipKind = "clip"
	ClipKindOther   ClipKind = "other"
)

// ParseClipKind maps TMDB video types ("Trailer", "Teaser", "Clip", ...) onto ClipKind.
func ParseClipKind(s string) ClipKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trailer":
		return ClipKindTrailer
	case "teaser":
		return ClipKindTeaser
	case "clip":
		return ClipKindClip
	}
	return ClipKindOther
}

// Clip is one candidate trailer for a MediaItem.
type Clip struct {
	ExternalKey  string   `json:"key"`
	DisplayName  string   `json:"name"`
	LanguageCode string   `json:"language,omitempty"`
	RegionCode   string   `json:"region,omitempty"`
	Kind         ClipKind `json:"kind"`
	IsOfficial   bool     `json:"official"`
	Site         string   `json:"site"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MediaItem is one browsable title as shown by the carousel.
type MediaItem struct {
	ID             int       `json:"id"`
	Kind           MediaKind `json:"kind"`
	DisplayTitle   string    `json:"title"`
	Overview       string    `json:"overview"`
	BackdropImage  string    `json:"backdrop_path"`
	PosterImage    string    `json:"poster_path"`
	Rating         float64   `json:"rating"`
	ReleaseYear    int       `json:"year,omitempty"`
	RuntimeMinutes int       `json:"runtime_minutes,omitempty"`
	SeasonCount    int       `json:"season_count,omitempty"`
	EpisodeCount   int       `json:"episode_count,omitempty"`
	AgeRating      string    `json:"age_rating"`
	TitleLogo      string    `json:"logo_path,omitempty"`
	Genres         []Genre   `json:"genres,omitempty"`
	TMDBURL        string    `json:"tmdb_url"`
	CandidateClips []Clip    `json:"clips"`
}

// DisplayRuntime renders "2h 15m" / "45m" for movies and "3 Seasons" for series.
func (m *MediaItem) DisplayRuntime() string {
	if m.Kind == MediaKindSeries {
		switch {
		case m.SeasonCount == 1:
			return "1 Season"
		case m.SeasonCount > 1:
			return fmt.Sprintf("%d Seasons", m.SeasonCount)
		}
		return ""
	}
	if m.RuntimeMinutes <= 0 {
		return ""
	}
	hours := m.RuntimeMinutes / 60
	mins := m.RuntimeMinutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// MatchPercent is the "98% match" badge, capped at 98.
func (m *MediaItem) MatchPercent() int {
	match := int(math.Round(m.Rating * 10))
	if match > 98 {
		return 98
	}
	if match < 0 {
		return 0
	}
	return match
}
