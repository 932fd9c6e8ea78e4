package geotiff

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/zlib"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// stripTarget is the uncompressed strip size aimed for.
const stripTarget = 8192

// Band is a single 8-bit band in row-major order.
type Band struct {
	Width, Height int
	Pix           []uint8
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

func shortsEntry(tag uint16, v ...uint16) ifdEntry {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		le.PutUint16(b[2*i:], x)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(v)), data: b}
}

func longsEntry(tag uint16, v ...uint32) ifdEntry {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		le.PutUint32(b[4*i:], x)
	}
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(v)), data: b}
}

func doublesEntry(tag uint16, v ...float64) ifdEntry {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		le.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(v)), data: b}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

// compressStrip applies the codec to one strip.
func compressStrip(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionDeflate:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return lzwEncode(raw), nil
	}
}

// Encode writes a little-endian, strip-organised, single-band 8-bit GeoTIFF.
func Encode(w io.Writer, b Band, md Metadata) error {
	if b.Width <= 0 || b.Height <= 0 {
		return errors.Newf("invalid raster size %dx%d", b.Width, b.Height).
			Component("geotiff").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(b.Pix) != b.Width*b.Height {
		return errors.Newf("pixel buffer has %d values, want %d", len(b.Pix), b.Width*b.Height).
			Component("geotiff").
			Category(errors.CategoryValidation).
			Build()
	}
	if md.Compression == "" {
		md.Compression = CompressionLZW
	}

	rowsPerStrip := max(1, stripTarget/b.Width)
	var (
		strips  [][]byte
		offsets []uint32
		counts  []uint32
	)
	pos := uint32(8)
	for row := 0; row < b.Height; row += rowsPerStrip {
		end := min(row+rowsPerStrip, b.Height)
		strip, err := compressStrip(md.Compression, b.Pix[row*b.Width:end*b.Width])
		if err != nil {
			return errors.New(err).
				Component("geotiff").
				Category(errors.CategoryRaster).
				Context("compression", string(md.Compression)).
				Build()
		}
		strips = append(strips, strip)
		offsets = append(offsets, pos)
		counts = append(counts, uint32(len(strip)))
		pos += uint32(len(strip))
	}
	if pos%2 == 1 {
		pos++
	}
	ifdOffset := pos

	entries := []ifdEntry{
		longsEntry(tagImageWidth, uint32(b.Width)),
		longsEntry(tagImageLength, uint32(b.Height)),
		shortsEntry(tagBitsPerSample, 8),
		shortsEntry(tagCompression, md.Compression.code()),
		shortsEntry(tagPhotometric, 1),
		longsEntry(tagStripOffsets, offsets...),
		shortsEntry(tagSamplesPerPixel, 1),
		longsEntry(tagRowsPerStrip, uint32(rowsPerStrip)),
		longsEntry(tagStripByteCounts, counts...),
		shortsEntry(tagPlanarConfig, 1),
		asciiEntry(tagSoftware, "landcover"),
		shortsEntry(tagSampleFormat, 1),
	}
	if md.Description != "" {
		entries = append(entries, asciiEntry(tagImageDescription, md.Description))
	}
	t := md.Transform
	if t.IsRectilinear() {
		entries = append(entries,
			doublesEntry(tagModelPixelScale, t.A, -t.E, 0),
			doublesEntry(tagModelTiepoint, 0, 0, 0, t.C, t.F, 0))
	} else {
		entries = append(entries, doublesEntry(tagModelTransformation,
			t.A, t.B, 0, t.C,
			t.D, t.E, 0, t.F,
			0, 0, 0, 0,
			0, 0, 0, 1))
	}
	if md.EPSG != 0 {
		entries = append(entries, shortsEntry(tagGeoKeyDirectory, geoKeys(md.EPSG, md.Geographic)...))
	}
	gdalMD, err := encodeGDALMetadata(md)
	if err != nil {
		return errors.New(err).Component("geotiff").Category(errors.CategoryRaster).Build()
	}
	if gdalMD != "" {
		entries = append(entries, asciiEntry(tagGDALMetadata, gdalMD))
	}
	if md.HasNodata {
		entries = append(entries, asciiEntry(tagGDALNodata, formatNodata(md.Nodata)))
	}
	slices.SortFunc(entries, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	bw := bufio.NewWriter(w)
	header := make([]byte, 8)
	copy(header, "II")
	le.PutUint16(header[2:], 42)
	le.PutUint32(header[4:], ifdOffset)
	if _, err := bw.Write(header); err != nil {
		return err
	}
	written := uint32(8)
	for _, s := range strips {
		if _, err := bw.Write(s); err != nil {
			return err
		}
		written += uint32(len(s))
	}
	if written < ifdOffset {
		if err := bw.WriteByte(0); err != nil {
			return err
		}
	}

	extra := ifdOffset + 2 + 12*uint32(len(entries)) + 4
	var overflow bytes.Buffer
	ifd := make([]byte, 2, 2+12*len(entries)+4)
	le.PutUint16(ifd, uint16(len(entries)))
	for _, e := range entries {
		rec := make([]byte, 12)
		le.PutUint16(rec[0:], e.tag)
		le.PutUint16(rec[2:], e.typ)
		le.PutUint32(rec[4:], e.count)
		if len(e.data) <= 4 {
			copy(rec[8:], e.data)
		} else {
			le.PutUint32(rec[8:], extra+uint32(overflow.Len()))
			overflow.Write(e.data)
			if overflow.Len()%2 == 1 {
				overflow.WriteByte(0)
			}
		}
		ifd = append(ifd, rec...)
	}
	ifd = append(ifd, 0, 0, 0, 0)

	if _, err := bw.Write(ifd); err != nil {
		return err
	}
	if _, err := bw.Write(overflow.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile creates or truncates path and encodes the band into it. The
// parent directory is created when missing.
func WriteFile(path string, b Band, md Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("create output directory: %w", err)).
			Component("geotiff").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.New(fmt.Errorf("open output file: %w", err)).
			Component("geotiff").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := Encode(f, b, md); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.New(err).
			Component("geotiff").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
