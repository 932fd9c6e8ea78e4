// Package geotiff reads and writes single-band GeoTIFF files. Pixel decoding
// is delegated to golang.org/x/image/tiff; georeferencing tags are parsed
// from the IFD directly.
package geotiff

import (
	"fmt"
	"strings"
)

// TIFF tags.
const (
	tagImageWidth       uint16 = 256
	tagImageLength      uint16 = 257
	tagBitsPerSample    uint16 = 258
	tagCompression      uint16 = 259
	tagPhotometric      uint16 = 262
	tagImageDescription uint16 = 270
	tagStripOffsets     uint16 = 273
	tagSamplesPerPixel  uint16 = 277
	tagRowsPerStrip     uint16 = 278
	tagStripByteCounts  uint16 = 279
	tagPlanarConfig     uint16 = 284
	tagSoftware         uint16 = 305
	tagSampleFormat     uint16 = 339

	tagModelPixelScale     uint16 = 33550
	tagModelTiepoint       uint16 = 33922
	tagModelTransformation uint16 = 34264
	tagGeoKeyDirectory     uint16 = 34735
	tagGDALMetadata        uint16 = 42112
	tagGDALNodata          uint16 = 42113
)

// TIFF field types.
const (
	typeByte   uint16 = 1
	typeASCII  uint16 = 2
	typeShort  uint16 = 3
	typeLong   uint16 = 4
	typeDouble uint16 = 12
)

var typeSize = map[uint16]int{
	typeByte:   1,
	typeASCII:  1,
	typeShort:  2,
	typeLong:   4,
	5:          8, // RATIONAL
	6:          1, // SBYTE
	7:          1, // UNDEFINED
	8:          2, // SSHORT
	9:          4, // SLONG
	10:         8, // SRATIONAL
	11:         4, // FLOAT
	typeDouble: 8,
}

// GeoKeys.
const (
	keyGTModelType      uint16 = 1024
	keyGTRasterType     uint16 = 1025
	keyGeographicType   uint16 = 2048
	keyProjectedCSType  uint16 = 3072
	modelTypeProjected  uint16 = 1
	modelTypeGeographic uint16 = 2
	rasterPixelIsArea   uint16 = 1
)

// Compression is a lossless codec for pixel strips.
type Compression string

// Supported codecs.
const (
	CompressionNone    Compression = "none"
	CompressionLZW     Compression = "lzw"
	CompressionDeflate Compression = "deflate"
)

// TIFF compression tag values.
const (
	codeNone       = 1
	codeLZW        = 5
	codeDeflate    = 8
	codeOldDeflate = 32946
)

// ParseCompression accepts the codec names used in configuration.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionLZW, nil
	case CompressionNone, CompressionLZW, CompressionDeflate:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported compression %q", s)
	}
}

func (c Compression) code() uint16 {
	switch c {
	case CompressionNone:
		return codeNone
	case CompressionDeflate:
		return codeDeflate
	default:
		return codeLZW
	}
}

func compressionFromCode(code uint16) Compression {
	switch code {
	case codeNone:
		return CompressionNone
	case codeDeflate, codeOldDeflate:
		return CompressionDeflate
	case codeLZW:
		return CompressionLZW
	default:
		return Compression(fmt.Sprintf("code-%d", code))
	}
}
