package conf

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestSettings(t *testing.T) *Settings {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaultConfig()

	settings := &Settings{}
	require.NoError(t, viper.Unmarshal(settings))
	return settings
}

func TestDefaultsAreValid(t *testing.T) {
	settings := defaultTestSettings(t)

	require.NoError(t, ValidateSettings(settings))
	assert.Equal(t, "8080", settings.WebServer.Port)
	assert.Equal(t, 100, settings.Photos.SearchPageSize)
	assert.Equal(t, 55*time.Minute, settings.Store.PhotoCacheTTL)
	assert.Equal(t, 10*time.Minute, settings.Store.AlbumCacheTTL)
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"empty_port", func(s *Settings) { s.WebServer.Port = "" }, "port"},
		{"zero_page_size", func(s *Settings) { s.Photos.SearchPageSize = 0 }, "page size"},
		{"zero_photos_to_load", func(s *Settings) { s.Photos.PhotosToLoad = -1 }, "photos to load"},
		{"empty_store_path", func(s *Settings) { s.Store.Path = "" }, "store path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := defaultTestSettings(t)
			tt.mutate(settings)

			err := ValidateSettings(settings)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
