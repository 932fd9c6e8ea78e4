package geotiff

import (
	"bytes"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff/lzw"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/raster"
)

func lzwRoundTrip(t *testing.T, in []byte) {
	t.Helper()
	r := lzw.NewReader(bytes.NewReader(lzwEncode(in)), lzw.MSB, 8)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, len(in), len(out))
	assert.True(t, bytes.Equal(in, out), "decoded bytes differ")
}

func TestLZWRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	random := make([]byte, 200_000)
	for i := range random {
		random[i] = byte(rng.IntN(7))
	}
	noisy := make([]byte, 50_000)
	for i := range noisy {
		noisy[i] = byte(rng.IntN(256))
	}

	tests := map[string][]byte{
		"empty":       {},
		"single":      {42},
		"pair":        {1, 1},
		"repetitive":  bytes.Repeat([]byte{0, 1, 2, 1}, 30_000),
		"categorical": random,
		"noisy":       noisy,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			lzwRoundTrip(t, in)
		})
	}
}

func sampleBand(w, h int) Band {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = uint8(i % 3)
	}
	return Band{Width: w, Height: h, Pix: pix}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZW, CompressionDeflate} {
		t.Run(string(c), func(t *testing.T) {
			band := sampleBand(300, 70)
			md := Metadata{
				EPSG:            3577,
				Transform:       raster.Transform{A: 25, C: 1_000_000, E: -25, F: -3_000_000},
				HasNodata:       true,
				Nodata:          255,
				Description:     "woody extent 2021",
				BandDescription: "2021",
				Items:           map[string]string{"year": "2021", "classification": "woody_non_woody"},
				Compression:     c,
			}

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, band, md))

			r, err := Decode(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, 300, r.Width)
			assert.Equal(t, 70, r.Height)
			assert.Equal(t, 8, r.BitsPerSample)
			for i, v := range band.Pix {
				if int32(v) != r.Data.Values[i] {
					t.Fatalf("pixel %d: got %d want %d", i, r.Data.Values[i], v)
				}
			}

			assert.Equal(t, 3577, r.Meta.EPSG)
			assert.False(t, r.Meta.Geographic)
			assert.Equal(t, md.Transform, r.Meta.Transform)
			assert.Equal(t, c, r.Meta.Compression)
			assert.Equal(t, "woody extent 2021", r.Meta.Description)
			assert.Equal(t, "2021", r.Meta.BandDescription)
			assert.Equal(t, "woody_non_woody", r.Meta.Items["classification"])
			nodata, ok := r.Nodata()
			require.True(t, ok)
			assert.Equal(t, int32(255), nodata)
		})
	}
}

func TestGeographicKeysAndRotatedTransform(t *testing.T) {
	md := Metadata{
		EPSG:       4326,
		Geographic: true,
		Transform:  raster.Transform{A: 0.01, B: 0.001, C: 150, D: 0.001, E: -0.01, F: -33},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleBand(4, 4), md))

	r, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 4326, r.Meta.EPSG)
	assert.True(t, r.Meta.Geographic)
	assert.Equal(t, md.Transform, r.Meta.Transform)
	_, ok := r.Nodata()
	assert.False(t, ok)
	assert.Equal(t, CompressionLZW, r.Meta.Compression, "empty codec defaults to LZW")
}

func TestEncodeValidation(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, Band{Width: 0, Height: 1}, Metadata{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = Encode(&buf, Band{Width: 2, Height: 2, Pix: []uint8{1}}, Metadata{})
	assert.Error(t, err)
}

func TestWriteFileAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.tif")
	require.NoError(t, WriteFile(path, sampleBand(5, 3), Metadata{EPSG: 3577, Transform: raster.Identity}))

	r, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, r.Data.Shape)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.tif"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestWriteFileUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := WriteFile(filepath.Join(blocker, "out.tif"), sampleBand(2, 2), Metadata{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := map[string][]byte{
		"short":   []byte("II"),
		"magic":   []byte("PK\x03\x04xxxx"),
		"bigtiff": {'I', 'I', 43, 0, 8, 0, 0, 0},
		"bad ifd": {'I', 'I', 42, 0, 0xff, 0xff, 0, 0},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZW, c)

	c, err = ParseCompression(" Deflate ")
	require.NoError(t, err)
	assert.Equal(t, CompressionDeflate, c)

	_, err = ParseCompression("jpeg")
	assert.Error(t, err)
}
