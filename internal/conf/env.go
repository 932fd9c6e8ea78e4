package conf

import (
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// EnvPrefix is the prefix for all environment overrides.
const EnvPrefix = "LANDCOVER"

// envOverride maps one environment variable onto a config key. check, when
// set, rejects malformed values before they reach validation proper.
type envOverride struct {
	key   string
	env   string
	check func(string) error
}

var envOverrides = []envOverride{
	{"dea_annual_landcover.output_dir", "LANDCOVER_OUTPUT_DIR", nil},
	{"dea_annual_landcover.start_year", "LANDCOVER_START_YEAR", checkYear},
	{"dea_annual_landcover.end_year", "LANDCOVER_END_YEAR", checkYear},
	{"dea_annual_landcover.stac.catalog_url", "LANDCOVER_STAC_URL", checkURL},
	{"dea_annual_landcover.cube.dsn", "LANDCOVER_CUBE_DSN", nil},
	{"dea_annual_landcover.processing.require_real_data", "LANDCOVER_REQUIRE_REAL_DATA", checkBool},

	{"logging.default_level", "LANDCOVER_LOG_LEVEL", checkLogLevel},

	{"sentry.dsn", "LANDCOVER_SENTRY_DSN", checkURL},

	{"publish.bucket", "LANDCOVER_S3_BUCKET", nil},
	{"publish.endpoint", "LANDCOVER_S3_ENDPOINT", checkURL},
	{"publish.access_key", "LANDCOVER_S3_ACCESS_KEY", nil},
	{"publish.secret_key", "LANDCOVER_S3_SECRET_KEY", nil},
	{"publish.access_key_file", "LANDCOVER_S3_ACCESS_KEY_FILE", nil},
	{"publish.secret_key_file", "LANDCOVER_S3_SECRET_KEY_FILE", nil},
}

// bindEnvironment enables LANDCOVER_* overrides. Every nested key is
// reachable through AutomaticEnv; the explicit list adds short names and
// value checks. Problems are returned joined, one per variable.
func bindEnvironment() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var errs []error
	for _, o := range envOverrides {
		if err := viper.BindEnv(o.key, o.env); err != nil {
			errs = append(errs, envError(o, err))
			continue
		}
		v := os.Getenv(o.env)
		if v == "" || o.check == nil {
			continue
		}
		if err := o.check(v); err != nil {
			errs = append(errs, envError(o, err))
		}
	}
	return errors.Join(errs...)
}

func envError(o envOverride, err error) error {
	return errors.New(err).
		Component("configuration").
		Category(errors.CategoryValidation).
		Context("env", o.env).
		Context("key", o.key).
		Build()
}

func checkBool(v string) error {
	if _, err := strconv.ParseBool(v); err != nil {
		return errors.NewStd("must be true or false")
	}
	return nil
}

func checkYear(v string) error {
	if y, err := strconv.Atoi(v); err != nil || y < 1900 || y > 2100 {
		return errors.NewStd("must be a four digit year")
	}
	return nil
}

func checkURL(v string) error {
	if u, err := url.Parse(v); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewStd("must be an absolute URL")
	}
	return nil
}

func checkLogLevel(v string) error {
	switch strings.ToLower(v) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return errors.NewStd("must be one of trace, debug, info, warn, error")
}
