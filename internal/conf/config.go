// Package conf loads and provides access to the application settings.
package conf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// WebServerSettings holds the HTTP server configuration.
type WebServerSettings struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// PhotosSettings holds the photo library API configuration.
type PhotosSettings struct {
	APIEndpoint    string        `yaml:"apiendpoint"`
	SearchPageSize int           `yaml:"searchpagesize"`
	AlbumPageSize  int           `yaml:"albumpagesize"`
	PhotosToLoad   int           `yaml:"photostoload"`
	Timeout        time.Duration `yaml:"timeout"`
	DetailCacheTTL time.Duration `yaml:"detailcachettl"`
}

// PlantNetSettings holds the Pl@ntNet identification API configuration.
type PlantNetSettings struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apikey"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimitMS int           `yaml:"ratelimitms"`
}

// StoreSettings holds the persistent key-value store configuration.
type StoreSettings struct {
	Path          string        `yaml:"path"`
	PhotoCacheTTL time.Duration `yaml:"photocachettl"`
	AlbumCacheTTL time.Duration `yaml:"albumcachettl"`
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug     bool              `yaml:"debug"`
	WebServer WebServerSettings `yaml:"webserver"`
	Photos    PhotosSettings    `yaml:"photos"`
	PlantNet  PlantNetSettings  `yaml:"plantnet"`
	Store     StoreSettings     `yaml:"store"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and installs it as the package singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the
// configuration file if one exists.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/plantframe")

	viper.SetEnvPrefix("plantframe")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and env carry the day.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// ValidateSettings checks settings for values that cannot work at runtime.
func ValidateSettings(settings *Settings) error {
	if settings.WebServer.Port == "" {
		return fmt.Errorf("webserver port must not be empty")
	}
	if settings.Photos.SearchPageSize <= 0 {
		return fmt.Errorf("photos search page size must be positive, got %d", settings.Photos.SearchPageSize)
	}
	if settings.Photos.PhotosToLoad <= 0 {
		return fmt.Errorf("photos to load must be positive, got %d", settings.Photos.PhotosToLoad)
	}
	if settings.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	return nil
}

// Setting returns the current settings instance, or nil before Load().
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
