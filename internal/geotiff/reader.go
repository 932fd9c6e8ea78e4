package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

// Raster is a decoded single-band GeoTIFF.
type Raster struct {
	Width, Height int
	Data          raster.Array
	BitsPerSample int
	Meta          Metadata
}

// Nodata returns the nodata sentinel as an integer, when one is declared.
func (r *Raster) Nodata() (int32, bool) {
	if !r.Meta.HasNodata || math.IsNaN(r.Meta.Nodata) {
		return 0, false
	}
	return int32(r.Meta.Nodata), true
}

// ReadFile decodes a GeoTIFF from disk.
func ReadFile(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		category := errors.CategoryFileIO
		if os.IsNotExist(err) {
			category = errors.CategoryNotFound
		}
		return nil, errors.New(err).
			Component("geotiff").
			Category(category).
			Context("path", path).
			Build()
	}
	r, err := Decode(data)
	if err != nil {
		return nil, errors.New(err).
			Component("geotiff").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return r, nil
}

// Decode parses a classic (non-Big) TIFF held in memory.
func Decode(data []byte) (*Raster, error) {
	fields, err := parseIFD(data)
	if err != nil {
		return nil, err
	}

	r := &Raster{BitsPerSample: 8}
	if v := fields.uints(tagBitsPerSample); len(v) > 0 {
		r.BitsPerSample = int(v[0])
	}
	if spp := fields.uints(tagSamplesPerPixel); len(spp) > 0 && spp[0] != 1 {
		return nil, fmt.Errorf("expected a single band, file has %d samples per pixel", spp[0])
	}
	signed := false
	if sf := fields.uints(tagSampleFormat); len(sf) > 0 {
		signed = sf[0] == 2
	}

	md := &r.Meta
	if c := fields.uints(tagCompression); len(c) > 0 {
		md.Compression = compressionFromCode(uint16(c[0]))
	} else {
		md.Compression = CompressionNone
	}
	md.Description = fields.ascii(tagImageDescription)
	if s := fields.ascii(tagGDALMetadata); s != "" {
		decodeGDALMetadata(s, md)
	}
	if s := fields.ascii(tagGDALNodata); s != "" {
		md.Nodata, md.HasNodata = parseNodata(s)
	}
	keys := fields.uints(tagGeoKeyDirectory)
	short := make([]uint16, len(keys))
	for i, k := range keys {
		short[i] = uint16(k)
	}
	parseGeoKeys(short, md)
	md.Transform = readTransform(fields)

	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode pixels: %w", err)
	}
	r.Data = pixelsToArray(img, signed)
	r.Height, r.Width = r.Data.Shape[0], r.Data.Shape[1]
	return r, nil
}

func readTransform(f ifdFields) raster.Transform {
	if m := f.doubles(tagModelTransformation); len(m) >= 8 {
		return raster.Transform{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
	}
	scale := f.doubles(tagModelPixelScale)
	tie := f.doubles(tagModelTiepoint)
	if len(scale) < 2 || len(tie) < 6 {
		return raster.Identity
	}
	return raster.Transform{
		A: scale[0],
		C: tie[3] - tie[0]*scale[0],
		E: -scale[1],
		F: tie[4] + tie[1]*scale[1],
	}
}

func pixelsToArray(img image.Image, signed bool) raster.Array {
	b := img.Bounds()
	out := raster.NewArray(b.Dy(), b.Dx())
	w := b.Dx()
	switch m := img.(type) {
	case *image.Gray:
		for y := range b.Dy() {
			row := m.Pix[y*m.Stride : y*m.Stride+w]
			for x, v := range row {
				out.Values[y*w+x] = int32(v)
			}
		}
	case *image.Paletted:
		for y := range b.Dy() {
			row := m.Pix[y*m.Stride : y*m.Stride+w]
			for x, v := range row {
				out.Values[y*w+x] = int32(v)
			}
		}
	case *image.Gray16:
		for y := range b.Dy() {
			for x := range w {
				i := y*m.Stride + 2*x
				v := binary.BigEndian.Uint16(m.Pix[i:])
				if signed {
					out.Values[y*w+x] = int32(int16(v))
				} else {
					out.Values[y*w+x] = int32(v)
				}
			}
		}
	default:
		for y := range b.Dy() {
			for x := range w {
				g, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out.Values[y*w+x] = int32(g >> 8)
			}
		}
	}
	return out
}

// ifdFields holds the raw entries of the first IFD.
type ifdFields struct {
	order   binary.ByteOrder
	data    []byte
	entries map[uint16]rawEntry
}

type rawEntry struct {
	typ   uint16
	count uint32
	value []byte
}

func parseIFD(data []byte) (ifdFields, error) {
	if len(data) < 8 {
		return ifdFields{}, fmt.Errorf("file too short for a TIFF header")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return ifdFields{}, fmt.Errorf("not a TIFF file")
	}
	switch order.Uint16(data[2:]) {
	case 42:
	case 43:
		return ifdFields{}, fmt.Errorf("BigTIFF is not supported")
	default:
		return ifdFields{}, fmt.Errorf("not a TIFF file")
	}

	off := int(order.Uint32(data[4:]))
	if off+2 > len(data) {
		return ifdFields{}, fmt.Errorf("IFD offset %d beyond end of file", off)
	}
	n := int(order.Uint16(data[off:]))
	if off+2+12*n > len(data) {
		return ifdFields{}, fmt.Errorf("IFD with %d entries truncated", n)
	}

	f := ifdFields{order: order, data: data, entries: make(map[uint16]rawEntry, n)}
	for i := range n {
		rec := data[off+2+12*i:]
		tag := order.Uint16(rec[0:])
		typ := order.Uint16(rec[2:])
		count := order.Uint32(rec[4:])
		size, ok := typeSize[typ]
		if !ok {
			continue
		}
		total := size * int(count)
		var value []byte
		if total <= 4 {
			value = rec[8 : 8+total]
		} else {
			vo := int(order.Uint32(rec[8:]))
			if vo+total > len(data) {
				return ifdFields{}, fmt.Errorf("tag %d value beyond end of file", tag)
			}
			value = data[vo : vo+total]
		}
		f.entries[tag] = rawEntry{typ: typ, count: count, value: value}
	}
	return f, nil
}

func (f ifdFields) uints(tag uint16) []uint32 {
	e, ok := f.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint32, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint32(e.value[i])
		case typeShort:
			out[i] = uint32(f.order.Uint16(e.value[2*i:]))
		case typeLong:
			out[i] = f.order.Uint32(e.value[4*i:])
		default:
			return nil
		}
	}
	return out
}

func (f ifdFields) doubles(tag uint16) []float64 {
	e, ok := f.entries[tag]
	if !ok || e.typ != typeDouble {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(f.order.Uint64(e.value[8*i:]))
	}
	return out
}

func (f ifdFields) ascii(tag uint16) string {
	e, ok := f.entries[tag]
	if !ok || e.typ != typeASCII {
		return ""
	}
	return string(bytes.TrimRight(e.value, "\x00"))
}
