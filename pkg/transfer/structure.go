package transfer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/remotepath"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

// EnsureStructure makes sure every directory along remotePath exists,
// creating missing ones parent first. Calling it again for the same path
// creates nothing.
func EnsureStructure(ctx context.Context, s engine.Session, remotePath string) error {
	return EnsureSegments(ctx, s, remotepath.SplitPath(remotePath))
}

// EnsureSegments is EnsureStructure for an already split path. The first
// failing existence check or creation stops the walk; directories created
// before it are left in place.
func EnsureSegments(ctx context.Context, s engine.Session, segments remotepath.Segments) error {
	ctx, span := telemetry.Tracer().Start(ctx, "transfer.EnsureStructure")
	defer span.End()
	span.SetAttributes(attribute.String("remote.path", segments.Absolute()))

	created, err := RunCancellable(ctx, s, func(s engine.Session) (int, error) {
		return materialize(ctx, s, segments)
	})
	telemetry.RecordDirectoriesCreated(ctx, int64(created))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ensure directory structure")
		return err
	}
	span.SetAttributes(attribute.Int("directories.created", created))
	return nil
}

func materialize(ctx context.Context, s engine.Session, segments remotepath.Segments) (int, error) {
	created := 0
	for i := 1; i <= segments.Len(); i++ {
		prefix := segments.Prefix(i)
		exists, err := s.FileExists(prefix)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := s.CreateDirectory(prefix); err != nil {
			return created, err
		}
		created++
		log.FromCtx(ctx).Debug("Created remote directory", zap.String("remotePath", prefix))
	}
	return created, nil
}
