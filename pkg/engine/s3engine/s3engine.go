// Package s3engine implements engine.Engine over S3. Remote paths take the
// form "/bucket/key": the first segment names the bucket and directories are
// zero-byte objects whose key ends in '/'.
package s3engine

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/awsconfig"
	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
)

type Engine struct{}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

// Open builds an S3 client. Host, when set, is the service endpoint;
// Username and Password are the access key and secret.
func (e *Engine) Open(ctx context.Context, opts engine.ConnectionOptions) (engine.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Protocol != engine.ProtocolS3 {
		return nil, eris.Wrapf(errors.ErrUnsupportedProtocol, "s3 engine cannot open %s", opts.Protocol)
	}

	endpoint := Endpoint(opts)
	awscfg, err := awsconfig.Load(ctx, awsconfig.Options{
		Endpoint:        endpoint,
		Region:          opts.Region,
		AccessKeyID:     opts.Username,
		SecretAccessKey: opts.Password,
	})
	if err != nil {
		return nil, errors.NewProtocolError("open", endpoint, err)
	}
	client := awss3.NewFromConfig(awscfg, func(o *awss3.Options) {
		o.UsePathStyle = true
	})

	logger := log.FromCtx(ctx).With(
		zap.String("protocol", string(opts.Protocol)),
		zap.String("endpoint", endpoint),
		zap.String("region", awscfg.Region),
	)
	logger.Info("Opened s3 session")
	return NewSession(ctx, client, logger), nil
}

// Endpoint derives the service URL from Host and Port. A host without a
// scheme is reached over https.
func Endpoint(opts engine.ConnectionOptions) string {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		return host
	}
	if opts.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(opts.Port))
	}
	return "https://" + host
}

// SplitPath separates the bucket from the object key.
func SplitPath(remotePath string) (bucket, key string) {
	p := strings.Trim(strings.ReplaceAll(remotePath, `\`, "/"), "/")
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key
}

func isNotFound(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if !stderrors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}

func str(s string) *string {
	return aws.String(s)
}
