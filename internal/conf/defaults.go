// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("dea_annual_landcover.product_id", "ga_ls_landcover_class_cyear_2")
	viper.SetDefault("dea_annual_landcover.start_year", 2000)
	viper.SetDefault("dea_annual_landcover.end_year", 2023)
	viper.SetDefault("dea_annual_landcover.crs", "EPSG:3577")
	viper.SetDefault("dea_annual_landcover.resolution", 25)
	viper.SetDefault("dea_annual_landcover.output_dir", "data/outputs/dea_landcover")
	viper.SetDefault("dea_annual_landcover.states", []string{"nsw", "qld"})
	viper.SetDefault("dea_annual_landcover.aoi_paths", map[string]string{
		"nsw": "data/boundaries/nsw.geojson",
		"qld": "data/boundaries/qld.geojson",
	})
	viper.SetDefault("dea_annual_landcover.classes_map.woody", []int{2})
	viper.SetDefault("dea_annual_landcover.classes_map.non_woody", []int{1, 3})
	viper.SetDefault("dea_annual_landcover.classes_map.other", []int{0, 4, 5, 6})
	viper.SetDefault("dea_annual_landcover.scheme", "ternary")

	viper.SetDefault("dea_annual_landcover.stac.enabled", true)
	viper.SetDefault("dea_annual_landcover.stac.catalog_url", "https://explorer.dea.ga.gov.au/stac")
	viper.SetDefault("dea_annual_landcover.stac.collection", "")
	viper.SetDefault("dea_annual_landcover.stac.asset", "level4")
	viper.SetDefault("dea_annual_landcover.stac.limit", 100)
	viper.SetDefault("dea_annual_landcover.stac.timeout", 60*time.Second)
	viper.SetDefault("dea_annual_landcover.stac.max_retries", 2)
	viper.SetDefault("dea_annual_landcover.stac.rate_limit", 5.0)
	viper.SetDefault("dea_annual_landcover.stac.cache_ttl", 30*time.Minute)
	viper.SetDefault("dea_annual_landcover.stac.max_concurrent_downloads", 4)

	viper.SetDefault("dea_annual_landcover.cube.enabled", false)
	viper.SetDefault("dea_annual_landcover.cube.driver", "sqlite")
	viper.SetDefault("dea_annual_landcover.cube.path", "data/cube/index.db")
	viper.SetDefault("dea_annual_landcover.cube.dsn", "")

	viper.SetDefault("dea_annual_landcover.synthetic.enabled", true)
	viper.SetDefault("dea_annual_landcover.synthetic.alphabet", []int{0, 1, 2, 3, 4, 5, 6})
	viper.SetDefault("dea_annual_landcover.synthetic.seed", 0)

	viper.SetDefault("dea_annual_landcover.processing.buffer_distance", 0.0)
	viper.SetDefault("dea_annual_landcover.processing.chunk_size", 2048)
	viper.SetDefault("dea_annual_landcover.processing.nodata_value", 255)
	viper.SetDefault("dea_annual_landcover.processing.compression", "lzw")
	viper.SetDefault("dea_annual_landcover.processing.require_real_data", false)
	viper.SetDefault("dea_annual_landcover.processing.max_memory_fraction", 0.5)

	viper.SetDefault("dea_annual_landcover.animation.enabled", true)
	viper.SetDefault("dea_annual_landcover.animation.fps", 2)
	viper.SetDefault("dea_annual_landcover.animation.loop", 0)
	viper.SetDefault("dea_annual_landcover.animation.format", "gif")
	viper.SetDefault("dea_annual_landcover.animation.ffmpeg_path", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/landcover.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("publish.enabled", false)
	viper.SetDefault("publish.prefix", "landcover")
	viper.SetDefault("publish.region", "ap-southeast-2")
	viper.SetDefault("publish.use_path_style", false)

	viper.SetDefault("boundary.endpoint", "https://overpass-api.de/api/interpreter")
	viper.SetDefault("boundary.timeout", 180*time.Second)
	viper.SetDefault("boundary.output_dir", "data/boundaries")

	viper.SetDefault("trend.enabled", true)
	viper.SetDefault("trend.threshold", 5.0)
	viper.SetDefault("trend.min_duration", 1)
}
