// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("photos.apiendpoint", "https://photoslibrary.googleapis.com")
	viper.SetDefault("photos.searchpagesize", 100)
	viper.SetDefault("photos.albumpagesize", 50)
	viper.SetDefault("photos.photostoload", 150)
	viper.SetDefault("photos.timeout", 30*time.Second)
	// Media item base URLs expire after 60 minutes, keep details shorter.
	viper.SetDefault("photos.detailcachettl", 55*time.Minute)

	viper.SetDefault("plantnet.endpoint", "https://my-api.plantnet.org/v2/identify/all")
	viper.SetDefault("plantnet.apikey", "")
	viper.SetDefault("plantnet.timeout", 30*time.Second)
	viper.SetDefault("plantnet.ratelimitms", 500)

	viper.SetDefault("store.path", "plantframe.db")
	viper.SetDefault("store.photocachettl", 55*time.Minute)
	viper.SetDefault("store.albumcachettl", 10*time.Minute)
}
