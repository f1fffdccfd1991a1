// Package uploader runs upload requests end to end: it opens a session,
// uploads each file, and journals every attempt.
package uploader

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/fs"
	"github.com/TrevorEdris/transfer-utils/pkg/journal"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/transfer"
)

type (
	// Opener is satisfied by *session.Opener.
	Opener interface {
		Options(input string) (engine.ConnectionOptions, error)
		OpenOptions(ctx context.Context, opts engine.ConnectionOptions) (engine.Session, error)
	}

	Uploader interface {
		Upload(ctx context.Context, req Request) ([]Result, error)
		MakeDirectory(ctx context.Context, connection, remotePath string) error
		Check(ctx context.Context, connection string) error
	}

	Request struct {
		// Connection is a connection string name or a literal descriptor.
		Connection      string   `json:"connection"`
		LocalPaths      []string `json:"localPaths"`
		RemoteDirectory string   `json:"remoteDirectory,omitempty"`
		// RemoteFileName renames the file; only valid for a single path.
		RemoteFileName      string                 `json:"remoteFileName,omitempty"`
		SkipEnsureStructure bool                   `json:"skipEnsureStructure,omitempty"`
		Transfer            engine.TransferOptions `json:"transfer"`
	}

	Result struct {
		TransferID string `json:"transferId"`
		LocalPath  string `json:"localPath"`
		RemotePath string `json:"remotePath"`
		Bytes      int64  `json:"bytes"`
		Status     string `json:"status"`
		Error      string `json:"error,omitempty"`
	}

	uploader struct {
		opener  Opener
		journal journal.Journal
	}
)

func New(opener Opener, j journal.Journal) Uploader {
	if j == nil {
		j = journal.Noop
	}
	return &uploader{
		opener:  opener,
		journal: j,
	}
}

// Validate checks a request before any connection is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Connection) == "" {
		return eris.Wrap(errors.ErrInvalidOptions, "connection is required")
	}
	if len(r.LocalPaths) == 0 {
		return eris.Wrap(errors.ErrInvalidOptions, "at least one local path is required")
	}
	if r.RemoteFileName != "" && len(r.LocalPaths) > 1 {
		return eris.Wrap(errors.ErrInvalidOptions, "remote file name requires a single local path")
	}
	return r.Transfer.Validate()
}

// Upload uploads the files in order over one session and stops at the first
// error. Results are returned for every attempted file.
func (u *uploader) Upload(ctx context.Context, req Request) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	opts, s, err := u.open(ctx, req.Connection)
	if err != nil {
		return nil, err
	}
	defer u.close(ctx, s)

	results := make([]Result, 0, len(req.LocalPaths))
	for _, localPath := range req.LocalPaths {
		res, err := u.uploadOne(ctx, s, opts, localPath, req)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (u *uploader) uploadOne(ctx context.Context, s engine.Session, opts engine.ConnectionOptions, localPath string, req Request) (Result, error) {
	id := uuid.NewString()
	ctx = log.With(ctx, zap.String("transferId", id))
	started := time.Now()

	uploadOpts := transfer.UploadOptions{
		RemoteFileName:      req.RemoteFileName,
		RemoteDirectory:     req.RemoteDirectory,
		Transfer:            &req.Transfer,
		SkipEnsureStructure: req.SkipEnsureStructure,
		Protocol:            string(opts.Protocol),
	}

	res := Result{TransferID: id, LocalPath: localPath}
	var outcome *engine.TransferOutcome
	file, err := fs.FromPath(localPath)
	if err == nil {
		res.LocalPath = file.Absolute
		res.RemotePath = transfer.Target(file.Name, uploadOpts)
		outcome, err = transfer.UploadFile(ctx, s, file, uploadOpts)
	}

	res.Status = transfer.Status(err)
	if outcome != nil {
		res.Bytes = outcome.Bytes()
	}
	if err != nil {
		res.Error = err.Error()
	}

	u.record(ctx, journal.Record{
		TransferID: id,
		Host:       opts.Host,
		Protocol:   string(opts.Protocol),
		LocalPath:  res.LocalPath,
		RemotePath: res.RemotePath,
		Bytes:      res.Bytes,
		Status:     res.Status,
		Error:      res.Error,
		StartedAt:  started.UnixMilli(),
		FinishedAt: time.Now().UnixMilli(),
	})
	return res, err
}

// MakeDirectory creates remotePath and any missing parents.
func (u *uploader) MakeDirectory(ctx context.Context, connection, remotePath string) error {
	_, s, err := u.open(ctx, connection)
	if err != nil {
		return err
	}
	defer u.close(ctx, s)
	return transfer.EnsureStructure(ctx, s, remotePath)
}

// Check opens and closes a session.
func (u *uploader) Check(ctx context.Context, connection string) error {
	_, s, err := u.open(ctx, connection)
	if err != nil {
		return err
	}
	u.close(ctx, s)
	return nil
}

func (u *uploader) open(ctx context.Context, connection string) (engine.ConnectionOptions, engine.Session, error) {
	opts, err := u.opener.Options(connection)
	if err != nil {
		return engine.ConnectionOptions{}, nil, err
	}
	s, err := u.opener.OpenOptions(ctx, opts)
	if err != nil {
		return engine.ConnectionOptions{}, nil, err
	}
	return opts, s, nil
}

func (u *uploader) close(ctx context.Context, s engine.Session) {
	if err := s.Close(); err != nil {
		log.FromCtx(ctx).Warn("Failed to close session", zap.Error(err))
	}
}

// record never fails the upload; a journal outage is only logged.
func (u *uploader) record(ctx context.Context, r journal.Record) {
	// The upload may have been cancelled; the record still has to land.
	ctx = context.WithoutCancel(ctx)
	if err := u.journal.Put(ctx, r); err != nil {
		log.FromCtx(ctx).Warn("Failed to journal transfer", zap.Error(err))
	}
}
