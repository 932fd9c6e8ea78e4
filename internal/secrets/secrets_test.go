package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

func TestExpandString(t *testing.T) {
	t.Setenv("LANDCOVER_TEST_KEY", "AKIA123")
	t.Setenv("LANDCOVER_TEST_EMPTY", "")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "literal", in: "plain-value", want: "plain-value"},
		{name: "variable", in: "${LANDCOVER_TEST_KEY}", want: "AKIA123"},
		{name: "embedded", in: "key=${LANDCOVER_TEST_KEY};", want: "key=AKIA123;"},
		{name: "default used", in: "${LANDCOVER_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty default", in: "${LANDCOVER_TEST_EMPTY:-}", want: ""},
		{name: "default ignored", in: "${LANDCOVER_TEST_KEY:-fallback}", want: "AKIA123"},
		{name: "missing", in: "${LANDCOVER_TEST_UNSET}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				assert.Contains(t, err.Error(), "LANDCOVER_TEST_UNSET")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "secret_key")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = ReadFile(empty)
	assert.Error(t, err)

	_, err = ReadFile(dir)
	assert.Error(t, err, "directories are rejected")

	_, err = ReadFile(filepath.Join(dir, "absent"))
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestResolvePrefersFile(t *testing.T) {
	t.Setenv("LANDCOVER_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	got, err := Resolve(path, "${LANDCOVER_TEST_KEY}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = Resolve("", "${LANDCOVER_TEST_KEY}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
