// Package publish uploads run artifacts to S3-compatible object storage.
// Objects are keyed <prefix>/<run-id>/<path relative to the output dir>.
package publish

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/secrets"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "ap-southeast-2"

// GetLogger returns the publish module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("publish")
}

// Config holds the bucket location and optional static credentials.
// Without credentials the default AWS chain applies.
type Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // for MinIO and other S3-compatible stores
	UsePathStyle bool
	AccessKey    string
	SecretKey    string
}

// FromSettings maps publish settings onto a Config, resolving credential
// references through the secrets package.
func FromSettings(p conf.PublishSettings) (Config, error) {
	access, err := secrets.Resolve(p.AccessKeyFile, p.AccessKey)
	if err != nil {
		return Config{}, err
	}
	secret, err := secrets.Resolve(p.SecretKeyFile, p.SecretKey)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Bucket:       p.Bucket,
		Prefix:       p.Prefix,
		Region:       p.Region,
		Endpoint:     p.Endpoint,
		UsePathStyle: p.UsePathStyle,
		AccessKey:    access,
		SecretKey:    secret,
	}, nil
}

// putter is the subset of the S3 client used here.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is one uploaded artifact.
type Object struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
	Size int64  `yaml:"size"`
}

// Publisher uploads files to one bucket.
type Publisher struct {
	client putter
	bucket string
	prefix string
	log    logger.Logger
}

type options struct {
	httpClient *http.Client
	log        logger.Logger
}

// Option configures New.
type Option func(*options)

// WithHTTPClient sets the HTTP client used by the S3 SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger injects a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a publisher backed by the AWS S3 client.
func New(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.Newf("publish bucket is required").
			Component("publish").
			Category(errors.CategoryConfiguration).
			Build()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("publish").
			Category(errors.CategoryConfiguration).
			Build()
	}
	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		so.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if o.httpClient != nil {
			so.HTTPClient = o.httpClient
		}
		// S3-compatible stores often reject streaming checksums.
		so.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return newPublisher(client, cfg, o.log), nil
}

func newPublisher(client putter, cfg Config, log logger.Logger) *Publisher {
	if log == nil {
		log = GetLogger()
	}
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log.With(logger.String("bucket", cfg.Bucket)),
	}
}

// Key returns the object key for a file relative to the output directory.
func (p *Publisher) Key(runID, rel string) string {
	return path.Join(p.prefix, runID, filepath.ToSlash(rel))
}

// Upload puts each file under the run's key prefix. Files outside root keep
// only their base name. It stops at the first failure and returns what was
// uploaded so far.
func (p *Publisher) Upload(ctx context.Context, runID, root string, files []string) ([]Object, error) {
	out := make([]Object, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(file)
		}
		obj, err := p.put(ctx, p.Key(runID, rel), file)
		if err != nil {
			return out, err
		}
		out = append(out, obj)
	}
	p.log.Info("artifacts published",
		logger.String("run_id", runID),
		logger.Int("objects", len(out)))
	return out, nil
}

func (p *Publisher) put(ctx context.Context, key, file string) (Object, error) {
	f, err := os.Open(file)
	if err != nil {
		return Object{}, errors.New(err).
			Component("publish").
			Category(errors.CategoryFileIO).
			Context("path", file).
			Build()
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return Object{}, errors.New(err).
			Component("publish").
			Category(errors.CategoryFileIO).
			Context("path", file).
			Build()
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return Object{}, errors.New(err).
			Component("publish").
			Category(errors.CategoryPublish).
			Context("key", key).
			Build()
	}
	p.log.Debug("object uploaded", logger.String("key", key), logger.Int64("size", info.Size()))
	return Object{Key: key, Path: file, Size: info.Size()}, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
