package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mfafio/mfaf/pkg/mfaf"
	"github.com/rs/zerolog/log"
)

// S3Credentials overrides the default credential chain. Both fields
// empty means fall back to the environment / shared config / instance
// profile, exactly as aws-sdk-go-v2's config.LoadDefaultConfig does on
// its own.
type S3Credentials struct {
	AccessKey string
	SecretKey string
}

// S3Opts locates an archive object in S3 and optionally points at a
// local path to cache it under.
type S3Opts struct {
	Bucket         string
	Key            string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	CachePath      string
	Credentials    S3Credentials
}

// S3Source is a mfaf.ByteSource backed by an S3 object. Without a
// CachePath, every ReadAt issues a ranged GetObject; with one, the
// object is downloaded once into a local cache file and all
// subsequent reads are served from there.
type S3Source struct {
	svc    *s3.Client
	bucket string
	key    string
	size   int64

	cachePath string
	cacheFile *os.File
}

// OpenS3 resolves opts.Bucket/opts.Key's size via HeadObject and
// returns a ByteSource over it. If opts.CachePath is set, the object
// is fully downloaded into that path (via a uuid-suffixed temp file,
// locked and renamed into place like SaveLocal) before returning,
// unless a file of the object's size is already there, in which case
// that file is used as is.
func OpenS3(ctx context.Context, opts S3Opts) (*S3Source, error) {
	cfg, err := s3Config(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	head, err := svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(opts.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("mfaf: head s3://%s/%s: %w", opts.Bucket, opts.Key, err)
	}

	src := &S3Source{
		svc:    svc,
		bucket: opts.Bucket,
		key:    opts.Key,
		size:   *head.ContentLength,
	}

	if opts.CachePath != "" {
		if err := src.populateCache(ctx, opts.CachePath); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func s3Config(ctx context.Context, opts S3Opts) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: opts.Endpoint}, nil
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}
	if opts.Credentials.AccessKey != "" && opts.Credentials.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.Credentials.AccessKey, opts.Credentials.SecretKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loadOpts...)
}

// populateCache downloads the object into cachePath through a
// uuid-suffixed temp file guarded by a flock lock, mirroring
// SaveLocal's atomic-rename pattern, then opens it for subsequent
// reads.
func (s *S3Source) populateCache(ctx context.Context, cachePath string) error {
	if fi, err := os.Stat(cachePath); err == nil && fi.Size() == s.size {
		f, err := os.Open(cachePath)
		if err != nil {
			return err
		}
		s.cachePath, s.cacheFile = cachePath, f
		return nil
	}

	lockPath := cachePath + ".lock"
	fileLock := flock.New(lockPath)
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("mfaf: acquire cache lock for %q: %w", cachePath, err)
	}
	defer fileLock.Unlock()
	defer os.Remove(lockPath)

	dir := filepath.Dir(cachePath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(cachePath), uuid.New().String()[:8]))

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("mfaf: create cache temp file %q: %w", tmpPath, err)
	}

	downloader := manager.NewDownloader(s.svc)
	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("mfaf: download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	f.Close()

	if err := os.Rename(tmpPath, cachePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mfaf: rename cache file into place: %w", err)
	}

	cacheFile, err := os.Open(cachePath)
	if err != nil {
		return err
	}
	log.Info().Str("bucket", s.bucket).Str("key", s.key).Str("cache", cachePath).Msg("mfaf: cached s3 object locally")
	s.cachePath, s.cacheFile = cachePath, cacheFile
	return nil
}

func (s *S3Source) Size() int64 { return s.size }

func (s *S3Source) ReadAt(p []byte, off int64) (int, error) {
	if s.cacheFile != nil {
		return s.cacheFile.ReadAt(p, off)
	}

	end := off + int64(len(p)) - 1
	resp, err := s.svc.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, fmt.Errorf("mfaf: get s3://%s/%s range: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF {
		return n, io.EOF
	}
	return n, err
}

// Close releases the local cache file handle, if any. It does not
// close the S3 client, which holds no handle worth releasing.
func (s *S3Source) Close() error {
	if s.cacheFile != nil {
		return s.cacheFile.Close()
	}
	return nil
}

// SaveS3 uploads a's encoded form directly to opts.Bucket/opts.Key
// using a multipart-capable uploader, streaming the encoder's output
// without staging a local copy first.
func SaveS3(ctx context.Context, opts S3Opts, a *mfaf.Archive) error {
	cfg, err := s3Config(ctx, opts)
	if err != nil {
		return err
	}
	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	pr, pw := io.Pipe()
	encodeErr := make(chan error, 1)
	go func() {
		err := a.Save(pw)
		encodeErr <- err
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
	}()

	uploader := manager.NewUploader(svc, func(u *manager.Uploader) {
		u.Concurrency = 32
	})
	_, uploadErr := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(opts.Key),
		Body:   pr,
	})

	if err := <-encodeErr; err != nil {
		return fmt.Errorf("mfaf: encode archive: %w", err)
	}
	if uploadErr != nil {
		return fmt.Errorf("mfaf: upload s3://%s/%s: %w", opts.Bucket, opts.Key, uploadErr)
	}
	return nil
}
