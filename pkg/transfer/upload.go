package transfer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/fs"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/remotepath"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type UploadOptions struct {
	// RemoteFileName defaults to the local file's base name.
	RemoteFileName string
	// RemoteDirectory may use '/' or '\' in any mix. Blank uploads to the
	// session's working directory.
	RemoteDirectory string
	// Transfer is passed through to the engine; nil means engine defaults.
	Transfer *engine.TransferOptions
	// SkipEnsureStructure disables creating missing remote directories.
	SkipEnsureStructure bool
	// Protocol labels telemetry only.
	Protocol string
}

// UploadPath uploads the local file at localPath.
func UploadPath(ctx context.Context, s engine.Session, localPath string, opts UploadOptions) (*engine.TransferOutcome, error) {
	file, err := fs.FromPath(localPath)
	if err != nil {
		return nil, err
	}
	return UploadFile(ctx, s, file, opts)
}

// UploadFile uploads file into opts.RemoteDirectory, creating the directory
// first unless told not to. Both steps run under RunCancellable.
//
// A non-nil outcome is returned together with errors.ErrTransferFailed when
// the engine reported per-file failures, so callers can inspect them.
func UploadFile(ctx context.Context, s engine.Session, file *fs.File, opts UploadOptions) (*engine.TransferOutcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "transfer.UploadFile")
	defer span.End()

	start := time.Now()
	outcome, err := upload(ctx, s, file, opts)

	status := Status(err)
	telemetry.RecordUpload(ctx, time.Since(start).Seconds(), opts.Protocol, status)
	if outcome != nil {
		telemetry.RecordUploadBytes(ctx, outcome.Bytes(), opts.Protocol)
	}
	span.SetAttributes(attribute.String("upload.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
	}
	return outcome, err
}

func upload(ctx context.Context, s engine.Session, file *fs.File, opts UploadOptions) (*engine.TransferOutcome, error) {
	if err := opts.Transfer.Validate(); err != nil {
		return nil, err
	}

	var segments remotepath.Segments
	if strings.TrimSpace(opts.RemoteDirectory) != "" {
		segments = remotepath.SplitPath(opts.RemoteDirectory)
	}

	if !opts.SkipEnsureStructure && !segments.IsEmpty() {
		if err := EnsureSegments(ctx, s, segments); err != nil {
			return nil, err
		}
	}

	remotePath := segments.File(remoteName(file.Name, opts))

	ctx = log.With(ctx, zap.String("localPath", file.Absolute), zap.String("remotePath", remotePath))
	logger := log.FromCtx(ctx)
	logger.Debug("Uploading file")

	outcome, err := RunCancellable(ctx, s, func(s engine.Session) (*engine.TransferOutcome, error) {
		return s.PutFile(file.Absolute, remotePath, opts.Transfer)
	})
	if err != nil {
		logger.Info("Upload did not complete", zap.Error(err))
		return nil, err
	}

	if err := outcome.Check(); err != nil {
		logger.Warn("Upload reported failures", zap.Error(err))
		return outcome, err
	}

	logger.Info("Uploaded file", zap.Int64("bytes", outcome.Bytes()))
	return outcome, nil
}

// Status classifies an upload error for reporting.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSucceeded
	case eris.Is(err, errors.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Target returns the remote path an upload of localName with opts writes to.
func Target(localName string, opts UploadOptions) string {
	var segments remotepath.Segments
	if strings.TrimSpace(opts.RemoteDirectory) != "" {
		segments = remotepath.SplitPath(opts.RemoteDirectory)
	}
	return segments.File(remoteName(localName, opts))
}

func remoteName(localName string, opts UploadOptions) string {
	if strings.TrimSpace(opts.RemoteFileName) == "" {
		return localName
	}
	return opts.RemoteFileName
}
