package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgecat/fridgecat-go/internal/errors"
)

func validSettings() *Settings {
	return &Settings{
		Crawler: CrawlerSettings{
			MaxConcurrentPerDomain: 8,
			DownloadDelay:          time.Second,
			MaxDelay:               60 * time.Second,
			DepthLimit:             4,
		},
		NLP: NLPSettings{
			SimilarityThreshold: 0.5,
			StorageBonus:        1.0,
		},
		Output: OutputSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "fridgecat.db"},
		},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		wantOK bool
	}{
		{"valid", func(s *Settings) {}, true},
		{"zero concurrency", func(s *Settings) { s.Crawler.MaxConcurrentPerDomain = 0 }, false},
		{"negative delay", func(s *Settings) { s.Crawler.DownloadDelay = -time.Second }, false},
		{"max delay below floor", func(s *Settings) { s.Crawler.MaxDelay = 500 * time.Millisecond }, false},
		{"zero depth limit", func(s *Settings) { s.Crawler.DepthLimit = 0 }, false},
		{"threshold above one", func(s *Settings) { s.NLP.SimilarityThreshold = 1.5 }, false},
		{"negative threshold", func(s *Settings) { s.NLP.SimilarityThreshold = -0.1 }, false},
		{"no store enabled", func(s *Settings) { s.Output.SQLite.Enabled = false }, false},
		{"mysql only", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := validSettings()
			tt.mutate(settings)

			err := ValidateSettings(settings)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))
		})
	}
}
