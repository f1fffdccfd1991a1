// Package engine describes the session-oriented remote file engine that the
// transfer layer drives.
//
// Engine calls block and cannot be interrupted. The only way to stop an
// in-flight call is Session.Abort, invoked from another goroutine, which makes
// the blocked call fail. A session then refuses further work.
package engine

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

type Protocol string

const (
	ProtocolSFTP Protocol = "sftp"
	ProtocolS3   Protocol = "s3"
)

// ParseProtocol maps a descriptor value onto a Protocol. Blank means SFTP.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sftp", "ssh":
		return ProtocolSFTP, nil
	case "s3":
		return ProtocolS3, nil
	}
	return "", eris.Wrapf(errors.ErrUnsupportedProtocol, "%q", s)
}

type (
	// ConnectionOptions is everything needed to open one session.
	ConnectionOptions struct {
		Protocol           Protocol      `validate:"required,oneof=sftp s3"`
		Host               string        `validate:"required_unless=Protocol s3"`
		Username           string
		Password           string
		HostKeyFingerprint string
		// Port of zero selects the protocol default.
		Port           int           `validate:"gte=0,lte=65535"`
		ExecutablePath string
		Timeout        time.Duration `validate:"gte=0"`
		Region         string
	}

	// TransferOptions tune a single put.
	TransferOptions struct {
		PreserveTimestamp bool `json:"preserveTimestamp,omitempty"`
		// FilePermissions is applied to the uploaded file when non-zero.
		FilePermissions os.FileMode `json:"filePermissions,omitempty"`
		// SpeedLimit in bytes per second; zero is unlimited.
		SpeedLimit int64 `json:"speedLimit,omitempty" validate:"gte=0"`
		// NoOverwrite turns an existing remote file into a failure record.
		NoOverwrite bool `json:"noOverwrite,omitempty"`
	}

	Engine interface {
		Open(ctx context.Context, opts ConnectionOptions) (Session, error)
	}

	// Session is a single open connection. It is not safe for concurrent use,
	// except that Abort may be called while another call is in flight.
	Session interface {
		FileExists(path string) (bool, error)
		CreateDirectory(path string) error
		PutFile(localPath, remotePath string, opts *TransferOptions) (*TransferOutcome, error)
		// Abort stops the in-flight call. With nothing in flight it fails with
		// errors.ErrNothingToAbort.
		Abort() error
		Close() error
	}
)

var validate = validator.New()

// Validate checks the options before an engine dials.
func (o ConnectionOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return eris.Wrap(errors.ErrInvalidOptions, err.Error())
	}
	return nil
}

// Validate checks the transfer options. Nil options are valid.
func (o *TransferOptions) Validate() error {
	if o == nil {
		return nil
	}
	if err := validate.Struct(o); err != nil {
		return eris.Wrap(errors.ErrInvalidOptions, err.Error())
	}
	return nil
}

// Address joins host and port, falling back to defaultPort.
func (o ConnectionOptions) Address(defaultPort int) string {
	port := o.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}
