// Package sftpengine implements engine.Engine over SFTP, either natively with
// golang.org/x/crypto/ssh or through an external ssh client executable.
package sftpengine

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

type Engine struct {
	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

// Open connects and starts the sftp subsystem. ctx bounds the connection
// attempt only; the session outlives it.
func (e *Engine) Open(ctx context.Context, opts engine.ConnectionOptions) (engine.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Protocol != engine.ProtocolSFTP {
		return nil, eris.Wrapf(errors.ErrUnsupportedProtocol, "sftp engine cannot open %s", opts.Protocol)
	}

	logger := log.FromCtx(ctx).With(
		zap.String("protocol", string(opts.Protocol)),
		zap.String("host", opts.Host),
		zap.String("user", opts.Username),
	)

	if opts.ExecutablePath != "" {
		return e.openExternal(ctx, opts, logger)
	}
	return e.openNative(ctx, opts, logger)
}

func (e *Engine) openNative(ctx context.Context, opts engine.ConnectionOptions, logger *zap.Logger) (*Session, error) {
	hostKeyCallback, err := HostKeyCallback(opts.HostKeyFingerprint, e.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	config := &ssh.ClientConfig{
		User: opts.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(opts.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = opts.Password
				}
				return answers, nil
			}),
		},
		Timeout: timeout,
	}
	var keyErr error
	config.HostKeyCallback = func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		keyErr = hostKeyCallback(hostname, remote, key)
		return keyErr
	}

	addr := opts.Address(DefaultPort)
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, errors.NewProtocolError("open", addr, err)
	}

	// The handshake itself does not watch ctx.
	stop := context.AfterFunc(dialCtx, func() { _ = conn.Close() })
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() && err == nil {
		err = dialCtx.Err()
		_ = ncc.Close()
	}
	if err != nil {
		_ = conn.Close()
		if keyErr != nil {
			return nil, hostKeyError(addr, keyErr)
		}
		return nil, errors.NewProtocolError("open", addr, err)
	}
	sshClient := ssh.NewClient(ncc, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, errors.NewProtocolError("open", addr, err)
	}

	logger.Info("Opened sftp session", zap.String("address", addr))
	return NewSession(ctx, client, logger, sshClient.Close), nil
}

// ExternalCommand builds the ssh invocation that runs the sftp subsystem on
// the remote host. Authentication is left to the client (agent, keys).
func ExternalCommand(opts engine.ConnectionOptions) *exec.Cmd {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	args := []string{"-oBatchMode=yes", "-p", strconv.Itoa(port)}
	if opts.Timeout > 0 {
		args = append(args, "-oConnectTimeout="+strconv.Itoa(int(opts.Timeout.Seconds())))
	}
	if opts.Username != "" {
		args = append(args, "-l", opts.Username)
	}
	args = append(args, "-s", opts.Host, "sftp")
	return exec.Command(opts.ExecutablePath, args...)
}

func (e *Engine) openExternal(ctx context.Context, opts engine.ConnectionOptions, logger *zap.Logger) (*Session, error) {
	cmd := ExternalCommand(opts)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, eris.Wrap(err, "failed to open stdin of the ssh client")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, eris.Wrap(err, "failed to open stdout of the ssh client")
	}
	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(errors.ErrExecutableNotFound, "failed to start %s: %v", opts.ExecutablePath, err)
	}

	stopProcess := func() error {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	}

	type opened struct {
		client *sftp.Client
		err    error
	}
	done := make(chan opened, 1)
	go func() {
		client, err := sftp.NewClientPipe(stdout, stdin)
		done <- opened{client, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			_ = stopProcess()
			return nil, errors.NewProtocolError("open", opts.Host, o.err)
		}
		logger.Info("Opened sftp session through external client", zap.String("executable", opts.ExecutablePath))
		return NewSession(ctx, o.client, logger, stopProcess), nil
	case <-ctx.Done():
		_ = stopProcess()
		return nil, errors.NewProtocolError("open", opts.Host, ctx.Err())
	}
}
