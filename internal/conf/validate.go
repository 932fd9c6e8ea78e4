// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateLandcoverSettings(&settings.Landcover); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateProcessingSettings(&settings.Landcover.Processing); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSourceSettings(&settings.Landcover); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateAnimationSettings(&settings.Landcover.Animation); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validatePublishSettings(&settings.Publish); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTrendSettings(&settings.Trend); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateLandcoverSettings checks the required profile keys
func validateLandcoverSettings(l *LandcoverSettings) error {
	var errs []string

	if strings.TrimSpace(l.ProductID) == "" {
		errs = append(errs, "product_id is required")
	}
	if l.StartYear <= 0 || l.EndYear <= 0 {
		errs = append(errs, "start_year and end_year are required")
	} else if l.StartYear > l.EndYear {
		errs = append(errs, fmt.Sprintf("start_year %d is after end_year %d", l.StartYear, l.EndYear))
	}
	if _, err := ParseEPSG(l.CRS); err != nil {
		errs = append(errs, err.Error())
	}
	if l.Resolution <= 0 {
		errs = append(errs, fmt.Sprintf("resolution must be positive, got %v", l.Resolution))
	}
	if strings.TrimSpace(l.OutputDir) == "" {
		errs = append(errs, "output_dir is required")
	}
	if len(l.AOIPaths) == 0 {
		errs = append(errs, "aoi_paths must list at least one state")
	}
	for _, state := range l.States {
		if _, ok := l.AOIPaths[strings.ToLower(state)]; !ok {
			errs = append(errs, fmt.Sprintf("state %q has no entry in aoi_paths", state))
		}
	}
	if len(l.ClassesMap.Woody) == 0 && len(l.ClassesMap.NonWoody) == 0 {
		errs = append(errs, "classes_map must define woody or non_woody codes")
	}
	switch l.Scheme {
	case "", "ternary", "binary":
	default:
		errs = append(errs, fmt.Sprintf("scheme must be ternary or binary, got %q", l.Scheme))
	}

	if len(errs) > 0 {
		return fmt.Errorf("dea_annual_landcover: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateProcessingSettings(p *ProcessingSettings) error {
	var errs []string

	if p.BufferDistance < 0 {
		errs = append(errs, "buffer_distance must not be negative")
	}
	if p.NodataValue < 0 || p.NodataValue > 255 {
		errs = append(errs, fmt.Sprintf("nodata_value must fit in a byte, got %d", p.NodataValue))
	}
	if !slices.Contains([]string{"lzw", "deflate", "none"}, strings.ToLower(p.Compression)) {
		errs = append(errs, fmt.Sprintf("compression must be lzw, deflate or none, got %q", p.Compression))
	}
	if p.MaxMemoryFraction <= 0 || p.MaxMemoryFraction > 1 {
		errs = append(errs, fmt.Sprintf("max_memory_fraction must be in (0, 1], got %v", p.MaxMemoryFraction))
	}

	if len(errs) > 0 {
		return fmt.Errorf("processing: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSourceSettings(l *LandcoverSettings) error {
	var errs []string

	if l.STAC.Enabled {
		if l.STAC.CatalogURL == "" {
			errs = append(errs, "stac.catalog_url is required when stac is enabled")
		}
		if l.STAC.MaxConcurrentDownloads < 1 {
			errs = append(errs, "stac.max_concurrent_downloads must be at least 1")
		}
	}

	if l.Cube.Enabled {
		switch l.Cube.Driver {
		case "sqlite":
			if l.Cube.Path == "" {
				errs = append(errs, "cube.path is required for the sqlite driver")
			}
		case "mysql":
			if l.Cube.DSN == "" {
				errs = append(errs, "cube.dsn is required for the mysql driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("cube.driver must be sqlite or mysql, got %q", l.Cube.Driver))
		}
	}

	if l.Synthetic.Enabled && len(l.Synthetic.Alphabet) == 0 {
		errs = append(errs, "synthetic.alphabet must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("source: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAnimationSettings(a *AnimationSettings) error {
	if !a.Enabled {
		return nil
	}
	if a.FPS <= 0 {
		return fmt.Errorf("animation: fps must be positive, got %v", a.FPS)
	}
	if a.Loop < 0 {
		return fmt.Errorf("animation: loop must not be negative")
	}
	switch a.Format {
	case "gif", "mp4":
	default:
		return fmt.Errorf("animation: format must be gif or mp4, got %q", a.Format)
	}
	return nil
}

func validatePublishSettings(p *PublishSettings) error {
	if p.Enabled && p.Bucket == "" {
		return fmt.Errorf("publish: bucket is required when publishing is enabled")
	}
	return nil
}

func validateTrendSettings(t *TrendSettings) error {
	for name, span := range map[string][]int{"baseline": t.Baseline, "comparison": t.Comparison} {
		if len(span) == 0 {
			continue
		}
		if len(span) != 2 || span[0] > span[1] {
			return fmt.Errorf("trend: %s must be [start, end], got %v", name, span)
		}
	}
	if t.Threshold < 0 {
		return fmt.Errorf("trend: threshold must not be negative")
	}
	return nil
}

// ParseEPSG extracts the numeric code from "EPSG:3577" style identifiers.
func ParseEPSG(crs string) (int, error) {
	s := strings.TrimSpace(strings.ToUpper(crs))
	code, ok := strings.CutPrefix(s, "EPSG:")
	if !ok {
		return 0, fmt.Errorf("crs must look like EPSG:<code>, got %q", crs)
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("crs must look like EPSG:<code>, got %q", crs)
	}
	return n, nil
}
