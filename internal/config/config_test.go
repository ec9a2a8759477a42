package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/internal/utils"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.App.Port)
	assert.Equal(t, 8*time.Second, cfg.Carousel.AutoPlayInterval)
	assert.Equal(t, 2*time.Second, cfg.Carousel.TrailerDelay)
	assert.Equal(t, []string{"highres", "hd1080", "hd720"}, cfg.Carousel.QualityLadder)
	assert.Equal(t, "stop", cfg.Carousel.EndPolicy)
	assert.Len(t, cfg.Catalog.Rows, 3)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9000
carousel:
  trailer_delay: 5s
  stall_threshold: 5
  end_policy: loop
  quality_ladder: [hd1080, hd720, large]
catalog:
  rows:
    - name: movies
      kind: movie
      window: day
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, 5*time.Second, cfg.Carousel.TrailerDelay)
	assert.Equal(t, 8*time.Second, cfg.Carousel.AutoPlayInterval)
	assert.Equal(t, 5, cfg.Carousel.StallThreshold)
	assert.Equal(t, "loop", cfg.Carousel.EndPolicy)
	assert.Equal(t, []string{"hd1080", "hd720", "large"}, cfg.Carousel.QualityLadder)
	require.Len(t, cfg.Catalog.Rows, 1)
	assert.Equal(t, "day", cfg.Catalog.Rows[0].Window)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "secret")
	t.Setenv("MARQUEE_PORT", "7000")
	t.Setenv("MARQUEE_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.TMDB.APIKey)
	assert.Equal(t, 7000, cfg.App.Port)
	assert.True(t, cfg.App.Debug)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "app: [not a map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Carousel.QualityLadder = nil
	cfg.Carousel.EndPolicy = "rewind"
	cfg.Catalog.RefreshSchedule = "whenever"
	cfg.Catalog.Rows = append(cfg.Catalog.Rows, RowConfig{Name: "home", Kind: "podcast", Window: "year"})

	err = Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "quality_ladder")
	assert.Contains(t, msg, "end_policy")
	assert.Contains(t, msg, "refresh_schedule")
	assert.Contains(t, msg, "duplicate row")
	assert.Contains(t, msg, "podcast")
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, "carousel:\n  trailer_delay: 3s\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	holder := NewHolder(cfg, path, utils.NewNopLogger())
	updates := make(chan *Config, 1)
	holder.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("carousel:\n  trailer_delay: 4s\n"), 0o644))
	require.NoError(t, holder.Reload())
	assert.Equal(t, 4*time.Second, holder.Get().Carousel.TrailerDelay)

	select {
	case got := <-updates:
		assert.Equal(t, 4*time.Second, got.Carousel.TrailerDelay)
	default:
		t.Fatal("listener was not notified")
	}

	// An invalid file keeps the previous config.
	require.NoError(t, os.WriteFile(path, []byte("carousel:\n  end_policy: rewind\n"), 0o644))
	assert.Error(t, holder.Reload())
	assert.Equal(t, 4*time.Second, holder.Get().Carousel.TrailerDelay)
}
