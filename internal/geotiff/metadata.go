package geotiff

import (
	"encoding/xml"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Metadata is the georeferencing and descriptive information stored with a
// raster.
type Metadata struct {
	EPSG            int
	Geographic      bool
	Transform       raster.Transform
	HasNodata       bool
	Nodata          float64
	Description     string
	BandDescription string
	Items           map[string]string
	Compression     Compression
}

type gdalItem struct {
	Name   string `xml:"name,attr"`
	Sample string `xml:"sample,attr,omitempty"`
	Role   string `xml:"role,attr,omitempty"`
	Value  string `xml:",chardata"`
}

type gdalMetadata struct {
	XMLName xml.Name   `xml:"GDALMetadata"`
	Items   []gdalItem `xml:"Item"`
}

// encodeGDALMetadata renders dataset items and the band description the way
// GDAL stores them in tag 42112.
func encodeGDALMetadata(md Metadata) (string, error) {
	var doc gdalMetadata
	for _, k := range slices.Sorted(maps.Keys(md.Items)) {
		doc.Items = append(doc.Items, gdalItem{Name: k, Value: md.Items[k]})
	}
	if md.BandDescription != "" {
		doc.Items = append(doc.Items, gdalItem{
			Name:   "DESCRIPTION",
			Sample: "0",
			Role:   "description",
			Value:  md.BandDescription,
		})
	}
	if len(doc.Items) == 0 {
		return "", nil
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func decodeGDALMetadata(s string, md *Metadata) {
	var doc gdalMetadata
	if err := xml.Unmarshal([]byte(strings.TrimRight(s, "\x00")), &doc); err != nil {
		return
	}
	for _, it := range doc.Items {
		if it.Role == "description" && it.Sample == "0" {
			md.BandDescription = it.Value
			continue
		}
		if it.Sample != "" {
			continue
		}
		if md.Items == nil {
			md.Items = make(map[string]string)
		}
		md.Items[it.Name] = it.Value
	}
}

func formatNodata(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseNodata(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(s, "\x00")), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// geoKeys builds the GeoKeyDirectory for an EPSG code.
func geoKeys(epsg int, geographic bool) []uint16 {
	model, crsKey := modelTypeProjected, keyProjectedCSType
	if geographic {
		model, crsKey = modelTypeGeographic, keyGeographicType
	}
	return []uint16{
		1, 1, 0, 3,
		keyGTModelType, 0, 1, model,
		keyGTRasterType, 0, 1, rasterPixelIsArea,
		crsKey, 0, 1, uint16(epsg),
	}
}

// parseGeoKeys extracts the EPSG code and model type.
func parseGeoKeys(keys []uint16, md *Metadata) {
	if len(keys) < 4 {
		return
	}
	n := int(keys[3])
	for i := range n {
		off := 4 + 4*i
		if off+3 >= len(keys) {
			return
		}
		id, loc, value := keys[off], keys[off+1], keys[off+3]
		if loc != 0 {
			continue
		}
		switch id {
		case keyGTModelType:
			md.Geographic = value == modelTypeGeographic
		case keyProjectedCSType:
			md.EPSG = int(value)
		case keyGeographicType:
			if md.EPSG == 0 {
				md.EPSG = int(value)
			}
		}
	}
}
