// Package session opens engine sessions from connection descriptors.
package session

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/descriptor"
	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/engine/s3engine"
	"github.com/TrevorEdris/transfer-utils/pkg/engine/sftpengine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/provision"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

type (
	Config struct {
		// StrictDescriptors fails on malformed descriptor tokens.
		StrictDescriptors bool
		// ExternalClient runs SFTP sessions over the provisioned ssh client
		// unless the descriptor names its own executable.
		ExternalClient bool
	}

	Opener struct {
		store   descriptor.Store
		cfg     Config
		engines map[engine.Protocol]engine.Engine
	}

	Option func(*Opener)
)

// WithEngine replaces the engine used for p.
func WithEngine(p engine.Protocol, e engine.Engine) Option {
	return func(o *Opener) {
		o.engines[p] = e
	}
}

// NewOpener resolves named descriptors against store, which may be nil.
func NewOpener(store descriptor.Store, cfg Config, opts ...Option) *Opener {
	o := &Opener{
		store: store,
		cfg:   cfg,
		engines: map[engine.Protocol]engine.Engine{
			engine.ProtocolSFTP: sftpengine.New(),
			engine.ProtocolS3:   s3engine.New(),
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Options resolves input, a connection string name or a literal descriptor,
// into connection options.
func (o *Opener) Options(input string) (engine.ConnectionOptions, error) {
	d, err := o.parse(input)
	if err != nil {
		return engine.ConnectionOptions{}, err
	}
	return o.options(d)
}

func (o *Opener) parse(input string) (descriptor.Descriptor, error) {
	return descriptor.Parse(input, o.store, descriptor.WithStrict(o.cfg.StrictDescriptors))
}

func (o *Opener) options(d descriptor.Descriptor) (engine.ConnectionOptions, error) {
	opts, err := d.ConnectionOptions()
	if err != nil {
		return engine.ConnectionOptions{}, err
	}

	if o.cfg.ExternalClient && opts.Protocol == engine.ProtocolSFTP && opts.ExecutablePath == "" {
		exe, err := provision.Current()
		if err != nil {
			return engine.ConnectionOptions{}, err
		}
		opts.ExecutablePath = exe.Path
	}
	return opts, nil
}

// Open parses input and opens a session with the matching engine.
func (o *Opener) Open(ctx context.Context, input string) (engine.Session, error) {
	d, err := o.parse(input)
	if err != nil {
		log.FromCtx(ctx).Warn("Failed to parse connection descriptor", zap.Error(err))
		return nil, err
	}
	ctx = log.With(ctx, zap.String("descriptor", d.Redacted()))

	opts, err := o.options(d)
	if err != nil {
		log.FromCtx(ctx).Warn("Failed to resolve connection options", zap.Error(err))
		return nil, err
	}
	return o.OpenOptions(ctx, opts)
}

func (o *Opener) OpenOptions(ctx context.Context, opts engine.ConnectionOptions) (engine.Session, error) {
	eng, ok := o.engines[opts.Protocol]
	if !ok {
		return nil, eris.Wrapf(errors.ErrUnsupportedProtocol, "no engine for %q", opts.Protocol)
	}

	start := time.Now()
	s, err := eng.Open(ctx, opts)
	status := "ok"
	if err != nil {
		status = "error"
	}
	telemetry.RecordSessionOpen(ctx, time.Since(start).Seconds(), string(opts.Protocol), status)

	if err != nil {
		log.FromCtx(ctx).Error("Failed to open session", zap.String("protocol", string(opts.Protocol)), zap.Error(err))
		return nil, err
	}
	log.FromCtx(ctx).Debug("Opened session",
		zap.String("protocol", string(opts.Protocol)),
		zap.String("host", opts.Host),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s, nil
}
