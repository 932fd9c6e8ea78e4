package publish

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
)

const runID = "3f2a9c1e-7d41-4b8e-9a55-0c6f1d2e8b7a"

type recordingPutter struct {
	keys  []string
	types []string
	body  map[string][]byte
	err   error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if r.body == nil {
		r.body = make(map[string][]byte)
	}
	r.keys = append(r.keys, aws.ToString(in.Key))
	r.types = append(r.types, aws.ToString(in.ContentType))
	r.body[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func testLogger() logger.Logger {
	var buf bytes.Buffer
	return logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC)
}

func artifacts(t *testing.T) (string, []string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nsw"), 0o755))
	files := []string{
		filepath.Join(root, "nsw", "nsw_woody_2020.tif"),
		filepath.Join(root, "nsw_woody_timeseries.gif"),
		filepath.Join(root, "summary.yaml"),
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(f, []byte(filepath.Base(f)), 0o600))
	}
	return root, files
}

func TestUpload(t *testing.T) {
	root, files := artifacts(t)
	rec := &recordingPutter{}
	p := newPublisher(rec, Config{Bucket: "b", Prefix: "/landcover/"}, testLogger())

	objs, err := p.Upload(t.Context(), runID, root, files)
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, []string{
		"landcover/" + runID + "/nsw/nsw_woody_2020.tif",
		"landcover/" + runID + "/nsw_woody_timeseries.gif",
		"landcover/" + runID + "/summary.yaml",
	}, rec.keys)
	assert.Equal(t, []string{"image/tiff", "image/gif", "application/yaml"}, rec.types)
	assert.Equal(t, []byte("summary.yaml"), rec.body["landcover/"+runID+"/summary.yaml"])
	assert.Equal(t, int64(len("nsw_woody_2020.tif")), objs[0].Size)
}

func TestUploadFileOutsideRoot(t *testing.T) {
	_, files := artifacts(t)
	rec := &recordingPutter{}
	p := newPublisher(rec, Config{Bucket: "b"}, testLogger())

	_, err := p.Upload(t.Context(), runID, t.TempDir(), files[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{runID + "/nsw_woody_2020.tif"}, rec.keys)
}

func TestUploadErrors(t *testing.T) {
	root, files := artifacts(t)

	p := newPublisher(&recordingPutter{err: errors.NewStd("access denied")}, Config{Bucket: "b"}, testLogger())
	objs, err := p.Upload(t.Context(), runID, root, files)
	assert.Empty(t, objs)
	assert.True(t, errors.IsCategory(err, errors.CategoryPublish))

	p = newPublisher(&recordingPutter{}, Config{Bucket: "b"}, testLogger())
	objs, err = p.Upload(t.Context(), runID, root, append(files[:1:1], filepath.Join(root, "missing.tif")))
	assert.Len(t, objs, 1)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestNewRequiresBucket(t *testing.T) {
	cfg, err := FromSettings(conf.PublishSettings{})
	require.NoError(t, err)
	_, err = New(t.Context(), cfg)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFromSettingsResolvesCredentials(t *testing.T) {
	t.Setenv("LANDCOVER_TEST_ACCESS", "AKIAENV")
	keyFile := filepath.Join(t.TempDir(), "secret_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("from-file\n"), 0o600))

	cfg, err := FromSettings(conf.PublishSettings{
		Bucket:        "b",
		AccessKey:     "${LANDCOVER_TEST_ACCESS}",
		SecretKey:     "ignored",
		SecretKeyFile: keyFile,
	})
	require.NoError(t, err)
	assert.Equal(t, "AKIAENV", cfg.AccessKey)
	assert.Equal(t, "from-file", cfg.SecretKey)

	_, err = FromSettings(conf.PublishSettings{Bucket: "b", AccessKey: "${LANDCOVER_TEST_UNSET}"})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewWithS3Client(t *testing.T) {
	root, files := artifacts(t)
	mt := httpmock.NewMockTransport()
	var paths []string
	mt.RegisterResponder(http.MethodPut, `=~^https://s3\.test/landcover-artifacts/`,
		func(req *http.Request) (*http.Response, error) {
			paths = append(paths, req.URL.Path)
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})

	cfg, err := FromSettings(conf.PublishSettings{
		Bucket:       "landcover-artifacts",
		Prefix:       "runs",
		Endpoint:     "https://s3.test",
		UsePathStyle: true,
		AccessKey:    "AKIATEST",
		SecretKey:    "secret",
	})
	require.NoError(t, err)
	p, err := New(t.Context(), cfg, WithHTTPClient(&http.Client{Transport: mt}), WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = p.Upload(t.Context(), runID, root, files[2:])
	require.NoError(t, err)
	assert.Equal(t, []string{"/landcover-artifacts/runs/" + runID + "/summary.yaml"}, paths)
}
