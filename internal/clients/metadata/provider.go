package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marquee/internal/config"
	"marquee/internal/models"
	"marquee/internal/utils"
)

const (
	untitled       = "Untitled"
	maxGenres      = 5
	enrichParallel = 4
	tmdbSiteURL    = "https://www.themoviedb.org"
)

// Certification countries, in preference order.
var certificationCountries = []string{"ES", "US"}

var ageRatings = map[string]string{
	"APTA": "0+", "G": "0+", "TV-Y": "0+", "TV-G": "0+",
	"7": "7+", "PG": "7+", "TV-Y7": "7+", "TV-PG": "7+",
	"12": "12+", "PG-13": "12+",
	"14": "14+", "TV-14": "14+",
	"16": "16+", "R": "16+",
	"18": "18+", "NC-17": "18+", "TV-MA": "18+",
}

// NormalizeAgeRating maps a certification onto the "N+" badge. Unknown
// values pass through unchanged.
func NormalizeAgeRating(cert string) string {
	cert = strings.TrimSpace(cert)
	if age, ok := ageRatings[strings.ToUpper(cert)]; ok {
		return age
	}
	return cert
}

// Selector picks one trending list.
type Selector struct {
	Kind   string // movie, tv or all
	Window string // day or week
	Limit  int
}

// Provider turns raw Client results into carousel items. It never fails:
// anything that goes wrong yields fewer or emptier items.
type Provider struct {
	client   Client
	language string
	limit    int
	logger   *utils.Logger
}

func NewProvider(client Client, cfg config.TMDBConfig, logger *utils.Logger) *Provider {
	limit := cfg.ItemLimit
	if limit <= 0 {
		limit = 5
	}
	return &Provider{
		client:   client,
		language: cfg.Language,
		limit:    limit,
		logger:   logger.Component("metadata"),
	}
}

// Items returns the enriched trending list for sel, or an empty slice.
func (p *Provider) Items(ctx context.Context, sel Selector) []models.MediaItem {
	results, err := p.client.Trending(ctx, sel.Kind, sel.Window)
	if err != nil {
		p.logger.Error().Err(err).
			Str(utils.FieldEvent, "metadata.trending_failed").
			Str("kind", sel.Kind).
			Str("window", sel.Window).
			Msg("failed to fetch trending titles")
		return []models.MediaItem{}
	}

	limit := sel.Limit
	if limit <= 0 {
		limit = p.limit
	}
	var picked []TrendingResult
	for _, r := range results {
		if len(picked) == limit {
			break
		}
		if r.ID <= 0 {
			continue
		}
		if _, err := models.ParseMediaKind(r.MediaType); err != nil {
			continue // people, collections
		}
		picked = append(picked, r)
	}

	items := make([]models.MediaItem, len(picked))
	var g errgroup.Group
	g.SetLimit(enrichParallel)
	for i, r := range picked {
		g.Go(func() error {
			items[i] = p.enrich(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info().
		Str(utils.FieldEvent, "metadata.items_loaded").
		Str("kind", sel.Kind).
		Int("count", len(items)).
		Msg("trending items loaded")
	return items
}

// Clips returns the candidate clips for one title, or nil.
func (p *Provider) Clips(ctx context.Context, kind models.MediaKind, id int) []models.Clip {
	videos, err := p.client.Videos(ctx, kind, id)
	if err != nil {
		p.logger.Warn().Err(err).Int(utils.FieldItemID, id).Msg("failed to fetch videos")
		return nil
	}
	return toClips(videos)
}

// enrich builds the item from the trending entry and fills in whatever the
// detail endpoints return. Each lookup fails independently.
func (p *Provider) enrich(ctx context.Context, r TrendingResult) models.MediaItem {
	kind, _ := models.ParseMediaKind(r.MediaType)
	item := baseItem(r, kind)

	var (
		videos  []VideoResult
		details *DetailsResult
		logos   []ImageResult
		certs   map[string]string
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		videos, err = p.client.Videos(ctx, kind, r.ID)
		p.logPartial("videos", r.ID, err)
		return nil
	})
	g.Go(func() error {
		var err error
		details, err = p.client.Details(ctx, kind, r.ID)
		p.logPartial("details", r.ID, err)
		return nil
	})
	g.Go(func() error {
		var err error
		logos, err = p.client.Logos(ctx, kind, r.ID)
		p.logPartial("images", r.ID, err)
		return nil
	})
	g.Go(func() error {
		var err error
		certs, err = p.client.Certifications(ctx, kind, r.ID)
		p.logPartial("certifications", r.ID, err)
		return nil
	})
	_ = g.Wait()

	item.CandidateClips = toClips(videos)
	if details != nil {
		if kind == models.MediaKindSeries {
			item.SeasonCount = max(details.NumberOfSeasons, 0)
			item.EpisodeCount = max(details.NumberOfEpisodes, 0)
		} else {
			item.RuntimeMinutes = max(details.Runtime, 0)
		}
		genres := details.Genres
		if len(genres) > maxGenres {
			genres = genres[:maxGenres]
		}
		item.Genres = genres
	}
	item.TitleLogo = pickLogo(logos, p.language)
	item.AgeRating = pickCertification(certs)
	return item
}

func (p *Provider) logPartial(part string, id int, err error) {
	if err == nil {
		return
	}
	p.logger.Warn().Err(err).
		Str(utils.FieldEvent, "metadata.enrich_failed").
		Str("part", part).
		Int(utils.FieldItemID, id).
		Msg("enrichment lookup failed, using defaults")
}

func baseItem(r TrendingResult, kind models.MediaKind) models.MediaItem {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = untitled
	}
	return models.MediaItem{
		ID:             r.ID,
		Kind:           kind,
		DisplayTitle:   title,
		Overview:       r.Overview,
		BackdropImage:  r.BackdropPath,
		PosterImage:    r.PosterPath,
		Rating:         clampRating(r.VoteAverage),
		ReleaseYear:    releaseYear(r.ReleaseDate),
		TMDBURL:        fmt.Sprintf("%s/%s/%d", tmdbSiteURL, kind.TMDBPath(), r.ID),
		CandidateClips: []models.Clip{},
	}
}

func toClips(videos []VideoResult) []models.Clip {
	clips := make([]models.Clip, 0, len(videos))
	for _, v := range videos {
		if v.Key == "" {
			continue
		}
		clips = append(clips, models.Clip{
			ExternalKey:  v.Key,
			DisplayName:  v.Name,
			LanguageCode: v.Language,
			RegionCode:   v.Region,
			Kind:         models.ParseClipKind(v.Type),
			IsOfficial:   v.Official,
			Site:         v.Site,
		})
	}
	return clips
}

// pickLogo prefers the configured language, then English, then anything.
func pickLogo(logos []ImageResult, language string) string {
	if len(logos) == 0 {
		return ""
	}
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	for _, want := range []string{lang, "en"} {
		if want == "" {
			continue
		}
		for _, l := range logos {
			if strings.EqualFold(l.Language, want) {
				return l.FilePath
			}
		}
	}
	return logos[0].FilePath
}

func pickCertification(certs map[string]string) string {
	for _, country := range certificationCountries {
		if cert := certs[country]; cert != "" {
			return NormalizeAgeRating(cert)
		}
	}
	return ""
}

func clampRating(r float64) float64 {
	switch {
	case r < 0 || r != r:
		return 0
	case r > 10:
		return 10
	}
	return r
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if t, err := time.Parse("2006", date[:4]); err == nil {
		return t.Year()
	}
	return 0
}
