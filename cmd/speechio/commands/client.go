package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/speechio/pkg/cli"
	ds "github.com/haivivi/speechio/pkg/doubaospeech"
	"github.com/haivivi/speechio/pkg/speechcache"
)

// createClient creates a Doubao Speech client from context configuration
func createClient(ctx *cli.Context) *ds.Client {
	opts := []ds.Option{
		ds.WithBearerToken(ctx.Token),
		ds.WithLogger(slog.Default()),
	}
	if ctx.Secret != "" {
		opts = append(opts, ds.WithSignature(ctx.Secret))
	}
	if ctx.Cluster != "" {
		opts = append(opts, ds.WithCluster(ctx.Cluster))
	}
	if ctx.ASRCluster != "" {
		opts = append(opts, ds.WithASRCluster(ctx.ASRCluster))
	}
	if ctx.WSURL != "" {
		opts = append(opts, ds.WithWebSocketURL(ctx.WSURL))
	}
	if t := ctx.HandshakeTimeout(); t > 0 {
		opts = append(opts, ds.WithTimeout(t))
	}
	if ctx.MaxSessions > 0 {
		opts = append(opts, ds.WithMaxSessions(ctx.MaxSessions))
	}
	return ds.NewClient(ctx.AppID, opts...)
}

// openCache builds the speech cache described by cfg. It returns nil when
// the cache is disabled.
func openCache(cfg *cli.CacheConfig, paths *cli.Paths) (*speechcache.Cache, error) {
	if cfg != nil && cfg.Disabled {
		return nil, nil
	}
	dir, indexDir := paths.CacheLocations(cfg)

	var index speechcache.Index
	if indexDir == "memory" {
		index = speechcache.NewMemoryIndex()
	} else {
		if err := os.MkdirAll(indexDir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		b, err := speechcache.OpenBadger(speechcache.BadgerOptions{Dir: indexDir, Logger: slog.Default()})
		if err != nil {
			return nil, err
		}
		index = b
	}

	store, err := openStore(cfg, dir)
	if err != nil {
		index.Close()
		return nil, err
	}
	return speechcache.New(index, store, speechcache.WithLogger(slog.Default())), nil
}

func openStore(cfg *cli.CacheConfig, dir string) (speechcache.FileStore, error) {
	if cfg != nil && cfg.S3 != nil && cfg.S3.Bucket != "" {
		return speechcache.NewS3(newS3Client(cfg.S3), cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	return speechcache.NewLocal(dir)
}

// newS3Client reads static credentials from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY. A custom endpoint switches to path-style
// addressing for MinIO and other S3-compatible stores.
func newS3Client(cfg *cli.S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "speechio-env",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for the S3 cache")
	}
	return creds, nil
}
