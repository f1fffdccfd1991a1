package sftpengine

import (
	"context"
	stderrors "errors"
	"io"
	"os"

	"github.com/pkg/sftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

// Session is an SFTP session. Paths are passed to the server unchanged, so
// relative paths resolve against the login directory.
type Session struct {
	client *sftp.Client
	guard  *engine.Guard
	logger *zap.Logger
	closer func() error
}

var _ engine.Session = (*Session)(nil)

// NewSession wraps an established SFTP client. closeTransport releases
// whatever carries the client (the SSH connection or the external process);
// it is also what Abort uses to unblock an in-flight call.
func NewSession(ctx context.Context, client *sftp.Client, logger *zap.Logger, closeTransport func() error) *Session {
	s := &Session{
		client: client,
		logger: logger,
		closer: closeTransport,
	}
	s.guard = engine.NewGuard(ctx, func() {
		if err := s.release(); err != nil {
			s.logger.Debug("Error tearing down aborted session", zap.Error(err))
		}
	})
	return s
}

func (s *Session) FileExists(path string) (bool, error) {
	ctx, err := s.guard.Begin("stat", path)
	if err != nil {
		return false, err
	}
	defer s.guard.End()

	_, err = s.client.Stat(path)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, s.fail(ctx, "stat", path, err)
}

// CreateDirectory creates a single directory; the parent must exist.
func (s *Session) CreateDirectory(path string) error {
	ctx, err := s.guard.Begin("mkdir", path)
	if err != nil {
		return err
	}
	defer s.guard.End()

	if err := s.client.Mkdir(path); err != nil {
		return s.fail(ctx, "mkdir", path, err)
	}
	s.logger.Debug("Created directory", zap.String("remotePath", path))
	return nil
}

// PutFile uploads localPath to remotePath. Problems on the local side and
// with setting attributes are reported as failure records; remote I/O
// failures are returned as errors.
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

	local, err := os.Open(localPath)
	if err != nil {
		return failed(eris.Wrap(err, "failed to open local file"))
	}
	defer local.Close()
	info, err := local.Stat()
	if err != nil {
		return failed(eris.Wrap(err, "failed to stat local file"))
	}
	if info.IsDir() {
		return failed(eris.Errorf("%s is a directory", localPath))
	}

	if opts.NoOverwrite {
		_, err := s.client.Stat(remotePath)
		if err == nil {
			return failed(eris.New("remote file already exists"))
		}
		if !stderrors.Is(err, os.ErrNotExist) {
			return nil, s.fail(ctx, "put", remotePath, err)
		}
	}

	remote, err := s.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, s.fail(ctx, "put", remotePath, err)
	}
	n, err := io.Copy(remote, engine.LimitReader(ctx, local, opts.SpeedLimit))
	if err != nil {
		_ = remote.Close()
		return nil, s.fail(ctx, "put", remotePath, err)
	}
	if err := remote.Close(); err != nil {
		return nil, s.fail(ctx, "put", remotePath, err)
	}

	if opts.PreserveTimestamp {
		if err := s.client.Chtimes(remotePath, info.ModTime(), info.ModTime()); err != nil {
			return failed(eris.Wrap(err, "failed to preserve timestamp"))
		}
	}
	if opts.FilePermissions != 0 {
		if err := s.client.Chmod(remotePath, opts.FilePermissions); err != nil {
			return failed(eris.Wrap(err, "failed to set permissions"))
		}
	}

	outcome.AddTransfer(engine.Transfer{LocalPath: localPath, RemotePath: remotePath, Bytes: n})
	s.logger.Debug("Put file", zap.String("remotePath", remotePath), zap.Int64("bytes", n))
	return outcome, nil
}

// Abort tears the transport down so the in-flight call returns with
// errors.ErrAborted. The session cannot be used afterwards.
func (s *Session) Abort() error {
	return s.guard.Abort()
}

func (s *Session) Close() error {
	if !s.guard.Close() {
		return nil
	}
	return s.release()
}

func (s *Session) release() error {
	err := s.client.Close()
	if s.closer != nil {
		if cerr := s.closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil && !stderrors.Is(err, io.EOF) {
		return eris.Wrap(err, "failed to close sftp session")
	}
	return nil
}

func (s *Session) fail(ctx context.Context, op, path string, err error) error {
	classified := s.guard.Fail(op, path, err)
	kind := "protocol"
	if errors.IsLocalError(classified) {
		kind = "aborted"
	}
	telemetry.RecordSessionError(ctx, string(engine.ProtocolSFTP), op, kind)
	return classified
}
