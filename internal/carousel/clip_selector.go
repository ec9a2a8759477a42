package carousel

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"marquee/internal/models"
	"marquee/internal/utils"
)

// LanguageBucket orders clips by audio preference; lower is better.
type LanguageBucket int

const (
	BucketLatinSpanish LanguageBucket = iota
	BucketEnglish
	BucketSpanish
	BucketOther
	BucketUnscored
)

// Regions whose Spanish counts as Latin-American.
var latamRegions = map[string]bool{
	"419": true, "MX": true, "AR": true, "CO": true, "CL": true, "PE": true,
	"VE": true, "UY": true, "PY": true, "BO": true, "EC": true, "GT": true,
	"CR": true, "PA": true, "DO": true, "HN": true, "NI": true, "SV": true,
	"CU": true, "PR": true, "US": true,
}

var (
	latinNameHints   = []string{"latino", "latin", "mexicano"}
	spanishNameHints = []string{"castellano", "españa", "espana", "spain"}
	englishNameHints = []string{"english", "inglés", "ingles"}

	// Codes the metadata source uses for "no spoken language" or "unknown".
	noLanguageCodes = map[string]bool{"xx": true, "zxx": true, "und": true, "mul": true}
)

// AudioOption is one selectable audio track for the current slide.
type AudioOption struct {
	Clip     models.Clip    `json:"clip"`
	Label    string         `json:"label"`
	Language string         `json:"language"`
	Bucket   LanguageBucket `json:"bucket"`
}

type rankedClip struct {
	clip   models.Clip
	bucket LanguageBucket
}

// ClipSelector picks the trailer to play for an item.
type ClipSelector struct {
	site   string
	logger *utils.Logger
}

func NewClipSelector(site string, logger *utils.Logger) *ClipSelector {
	if site == "" {
		site = "YouTube"
	}
	return &ClipSelector{site: site, logger: logger}
}

// Resolve returns the preferred playable clip, or false when there is none.
func (s *ClipSelector) Resolve(clips []models.Clip) (models.Clip, bool) {
	// Step 1: only clips the player provider can embed
	playable := s.filterBySite(clips)
	if len(playable) == 0 {
		s.logger.Debug().Int("candidates", len(clips)).Msg("no playable clips")
		return models.Clip{}, false
	}

	// Step 2: bucket by language and order, keeping source order inside a bucket
	ranked := s.rank(playable)

	// Step 3: narrow to the best bucket present
	top := ranked[0].bucket
	var best []models.Clip
	for _, r := range ranked {
		if r.bucket != top {
			break
		}
		best = append(best, r.clip)
	}

	// Step 4: official trailer, then any trailer, then whatever is left
	chosen := best[0]
	if c, ok := firstMatch(best, func(c models.Clip) bool { return c.Kind == models.ClipKindTrailer && c.IsOfficial }); ok {
		chosen = c
	} else if c, ok := firstMatch(best, func(c models.Clip) bool { return c.Kind == models.ClipKindTrailer }); ok {
		chosen = c
	}

	s.logger.Debug().
		Str(utils.FieldClipKey, chosen.ExternalKey).
		Int("bucket", int(top)).
		Int("playable", len(playable)).
		Msg("clip resolved")
	return chosen, true
}

// AudioOptions lists playable clips once each, in language preference order.
func (s *ClipSelector) AudioOptions(clips []models.Clip) []AudioOption {
	ranked := s.rank(s.filterBySite(clips))

	seen := make(map[string]bool, len(ranked))
	options := make([]AudioOption, 0, len(ranked))
	for _, r := range ranked {
		if seen[r.clip.ExternalKey] {
			continue
		}
		seen[r.clip.ExternalKey] = true
		options = append(options, AudioOption{
			Clip:     r.clip,
			Label:    bucketLabel(r.bucket, r.clip),
			Language: baseLanguage(r.clip),
			Bucket:   r.bucket,
		})
	}
	return options
}

// Bucket classifies a clip by its language tags, falling back to name hints.
func (s *ClipSelector) Bucket(c models.Clip) LanguageBucket {
	name := strings.ToLower(c.DisplayName)
	if containsAny(name, latinNameHints) {
		return BucketLatinSpanish
	}

	base, region, ok := parseClipLanguage(c)
	if !ok {
		switch {
		case containsAny(name, spanishNameHints):
			return BucketSpanish
		case containsAny(name, englishNameHints):
			return BucketEnglish
		}
		return BucketUnscored
	}

	switch base {
	case "es":
		if region == "" || latamRegions[region] {
			return BucketLatinSpanish
		}
		return BucketSpanish
	case "en":
		return BucketEnglish
	}
	if containsAny(name, spanishNameHints) {
		return BucketSpanish
	}
	return BucketOther
}

func (s *ClipSelector) filterBySite(clips []models.Clip) []models.Clip {
	var filtered []models.Clip
	for _, c := range clips {
		if c.ExternalKey == "" || !strings.EqualFold(c.Site, s.site) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func (s *ClipSelector) rank(clips []models.Clip) []rankedClip {
	ranked := make([]rankedClip, len(clips))
	for i, c := range clips {
		ranked[i] = rankedClip{clip: c, bucket: s.Bucket(c)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].bucket < ranked[j].bucket
	})
	return ranked
}

// parseClipLanguage returns the lower-case base language and upper-case region.
// An explicit RegionCode wins over a region inside LanguageCode; a region the
// tag only implies is ignored.
func parseClipLanguage(c models.Clip) (base, region string, ok bool) {
	code := strings.ReplaceAll(strings.TrimSpace(c.LanguageCode), "_", "-")
	if code == "" || noLanguageCodes[strings.ToLower(code)] {
		return "", "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", "", false
	}
	// A guessed base (e.g. for "und-MX") is not a language tag we can trust.
	b, conf := tag.Base()
	if conf != language.Exact {
		return "", "", false
	}
	base = b.String()
	if r, conf := tag.Region(); conf == language.Exact {
		region = r.String()
	}
	if rc := strings.TrimSpace(c.RegionCode); rc != "" {
		if r, err := language.ParseRegion(rc); err == nil {
			region = r.String()
		} else {
			region = strings.ToUpper(rc)
		}
	}
	return base, region, true
}

func baseLanguage(c models.Clip) string {
	base, _, ok := parseClipLanguage(c)
	if !ok {
		return ""
	}
	return base
}

func bucketLabel(b LanguageBucket, c models.Clip) string {
	switch b {
	case BucketLatinSpanish:
		return "Español Latino"
	case BucketEnglish:
		return "English"
	case BucketSpanish:
		return "Español"
	}
	if lang := baseLanguage(c); lang != "" {
		return strings.ToUpper(lang)
	}
	return "OTHER"
}

func firstMatch(clips []models.Clip, pred func(models.Clip) bool) (models.Clip, bool) {
	for _, c := range clips {
		if pred(c) {
			return c, true
		}
	}
	return models.Clip{}, false
}

// containsAny reports whether a word of s starts with one of the hints, so
// "latino" matches "Latinoamérica" but "latin" does not match "Platinum".
func containsAny(s string, hints []string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, h := range hints {
			if strings.HasPrefix(w, h) {
				return true
			}
		}
	}
	return false
}
