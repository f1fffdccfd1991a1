package s3engine

import (
	"bytes"
	"context"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

const (
	// Object metadata written for PreserveTimestamp and FilePermissions, in
	// the layout s3fs uses.
	MetadataModTime = "mtime"
	MetadataMode    = "mode"
)

type Session struct {
	client   *awss3.Client
	uploader *manager.Uploader
	guard    *engine.Guard
	logger   *zap.Logger
}

var _ engine.Session = (*Session)(nil)

// NewSession wraps client. Abort cancels the context of the in-flight request.
func NewSession(ctx context.Context, client *awss3.Client, logger *zap.Logger) *Session {
	return &Session{
		client:   client,
		uploader: manager.NewUploader(client),
		guard:    engine.NewGuard(ctx, nil),
		logger:   logger,
	}
}

// FileExists reports whether the bucket, object or directory prefix exists.
// The root always exists.
func (s *Session) FileExists(path string) (bool, error) {
	ctx, err := s.guard.Begin("stat", path)
	if err != nil {
		return false, err
	}
	defer s.guard.End()

	bucket, key := SplitPath(path)
	if bucket == "" {
		return true, nil
	}

	if key == "" {
		_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: str(bucket)})
		if err == nil {
			return true, nil
		}
		if isNotFound(err) {
			return false, nil
		}
		return false, s.fail(ctx, "stat", path, err)
	}

	_, err = s.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: str(bucket), Key: str(key)})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, s.fail(ctx, "stat", path, err)
	}

	out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: str(bucket),
		Prefix: str(key + "/"),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, s.fail(ctx, "stat", path, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// CreateDirectory creates the bucket for a single-segment path and a
// directory marker object otherwise.
func (s *Session) CreateDirectory(path string) error {
	ctx, err := s.guard.Begin("mkdir", path)
	if err != nil {
		return err
	}
	defer s.guard.End()

	bucket, key := SplitPath(path)
	if bucket == "" {
		return errors.NewProtocolError("mkdir", path, eris.New("cannot create the root"))
	}

	if key == "" {
		_, err = s.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: str(bucket)})
	} else {
		_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: str(bucket),
			Key:    str(key + "/"),
			Body:   bytes.NewReader(nil),
		})
	}
	if err != nil {
		return s.fail(ctx, "mkdir", path, err)
	}
	s.logger.Debug("Created directory", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

func (s *Session) PutFile(localPath, remotePath string, opts *engine.TransferOptions) (*engine.TransferOutcome, error) {
	ctx, err := s.guard.Begin("put", remotePath)
	if err != nil {
		return nil, err
	}
	defer s.guard.End()

	if opts == nil {
		opts = &engine.TransferOptions{}
	}
	outcome := &engine.TransferOutcome{}
	failed := func(cause error) (*engine.TransferOutcome, error) {
		outcome.AddFailure(engine.TransferFailure{LocalPath: localPath, RemotePath: remotePath, Err: cause})
		return outcome, nil
	}

	bucket, key := SplitPath(remotePath)
	if bucket == "" || key == "" {
		return failed(eris.Errorf("%q does not name an object inside a bucket", remotePath))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return failed(eris.Wrap(err, "failed to open local file"))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return failed(eris.Wrap(err, "failed to stat local file"))
	}
	if info.IsDir() {
		return failed(eris.Errorf("%s is a directory", localPath))
	}

	if opts.NoOverwrite {
		_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: str(bucket), Key: str(key)})
		if err == nil {
			return failed(eris.New("remote file already exists"))
		}
		if !isNotFound(err) {
			return nil, s.fail(ctx, "put", remotePath, err)
		}
	}

	metadata := map[string]string{}
	if opts.PreserveTimestamp {
		metadata[MetadataModTime] = strconv.FormatInt(info.ModTime().Unix(), 10)
	}
	if opts.FilePermissions != 0 {
		metadata[MetadataMode] = strconv.FormatUint(uint64(opts.FilePermissions.Perm()), 10)
	}

	input := &awss3.PutObjectInput{
		Bucket: str(bucket),
		Key:    str(key),
		Body:   engine.LimitReader(ctx, f, opts.SpeedLimit),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	s.logger.Debug("Uploading object", zap.String("bucket", bucket), zap.String("key", key))
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return nil, s.fail(ctx, "put", remotePath, err)
	}

	outcome.AddTransfer(engine.Transfer{LocalPath: localPath, RemotePath: remotePath, Bytes: info.Size()})
	return outcome, nil
}

// Abort cancels the in-flight request. The session cannot be used afterwards.
func (s *Session) Abort() error {
	return s.guard.Abort()
}

func (s *Session) Close() error {
	s.guard.Close()
	return nil
}

func (s *Session) fail(ctx context.Context, op, path string, err error) error {
	classified := s.guard.Fail(op, path, err)
	kind := "protocol"
	if errors.IsLocalError(classified) {
		kind = "aborted"
	}
	telemetry.RecordSessionError(ctx, string(engine.ProtocolS3), op, kind)
	return classified
}
