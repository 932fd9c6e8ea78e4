// Package geo resolves areas of interest from boundary files and converts
// geometries between the coordinate reference systems used for Australian
// land-cover products.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// Well-known EPSG codes.
const (
	EPSGWGS84            = 4326
	EPSGGDA94            = 4283
	EPSGGDA2020          = 7844
	EPSGAustralianAlbers = 3577
	EPSGGDA2020Albers    = 9473
	EPSGWebMercator      = 3857
)

// CRS is a coordinate reference system known to the registry.
type CRS struct {
	EPSG       int
	Name       string
	Geographic bool
}

// String returns the "EPSG:<code>" form.
func (c CRS) String() string {
	return "EPSG:" + strconv.Itoa(c.EPSG)
}

// IsZero reports whether the CRS is unset.
func (c CRS) IsZero() bool {
	return c.EPSG == 0
}

var registry = map[int]CRS{
	EPSGWGS84:            {EPSG: EPSGWGS84, Name: "WGS 84", Geographic: true},
	EPSGGDA94:            {EPSG: EPSGGDA94, Name: "GDA94", Geographic: true},
	EPSGGDA2020:          {EPSG: EPSGGDA2020, Name: "GDA2020", Geographic: true},
	EPSGAustralianAlbers: {EPSG: EPSGAustralianAlbers, Name: "GDA94 / Australian Albers"},
	EPSGGDA2020Albers:    {EPSG: EPSGGDA2020Albers, Name: "GDA2020 / Australian Albers"},
	EPSGWebMercator:      {EPSG: EPSGWebMercator, Name: "WGS 84 / Pseudo-Mercator"},
}

// WGS84 is the default CRS for GeoJSON without a crs member.
var WGS84 = registry[EPSGWGS84]

// AustralianAlbers is the canonical metric CRS used for buffering.
var AustralianAlbers = registry[EPSGAustralianAlbers]

// LookupEPSG returns the registered CRS for an EPSG code.
func LookupEPSG(code int) (CRS, error) {
	c, ok := registry[code]
	if !ok {
		return CRS{}, errors.New(fmt.Errorf("%w: EPSG:%d", ErrUnresolvableCRS, code)).
			Component("geo").
			Category(errors.CategoryGeometry).
			Context("epsg", code).
			Build()
	}
	return c, nil
}

// ParseCRS resolves identifiers such as "EPSG:3577", "epsg:4326",
// "urn:ogc:def:crs:EPSG::4283", "urn:ogc:def:crs:OGC:1.3:CRS84" or a bare
// code.
func ParseCRS(s string) (CRS, error) {
	id := strings.TrimSpace(s)
	upper := strings.ToUpper(id)

	switch {
	case upper == "":
		return CRS{}, errors.New(ErrUnresolvableCRS).
			Component("geo").
			Category(errors.CategoryGeometry).
			Context("crs", s).
			Build()
	case strings.HasSuffix(upper, "CRS84"):
		return WGS84, nil
	}

	code := upper
	if i := strings.LastIndex(upper, ":"); i >= 0 {
		code = upper[i+1:]
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return CRS{}, errors.New(fmt.Errorf("%w: %q", ErrUnresolvableCRS, s)).
			Component("geo").
			Category(errors.CategoryGeometry).
			Context("crs", s).
			Build()
	}
	return LookupEPSG(n)
}

// MustParseCRS is ParseCRS for package-level constants and tests.
func MustParseCRS(s string) CRS {
	c, err := ParseCRS(s)
	if err != nil {
		panic(err)
	}
	return c
}
