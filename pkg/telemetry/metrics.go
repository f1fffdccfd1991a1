package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	// Upload metrics
	uploadDuration     otelmetric.Float64Histogram
	uploadCount        otelmetric.Int64Counter
	uploadBytes        otelmetric.Int64Counter
	directoriesCreated otelmetric.Int64Counter
	envelopeOutcome    otelmetric.Int64Counter

	// Session metrics
	sessionOpenDuration otelmetric.Float64Histogram
	sessionErrors       otelmetric.Int64Counter

	journalWrites otelmetric.Int64Counter

	// API metrics
	apiRequestDuration otelmetric.Float64Histogram
	apiRequestCount    otelmetric.Int64Counter
	apiRequestErrors   otelmetric.Int64Counter
	apiJobsActive      otelmetric.Int64UpDownCounter
)

// InitMetrics creates every instrument. Record* functions are no-ops until it
// has run.
func InitMetrics() error {
	m := Meter()

	var err error

	uploadDuration, err = m.Float64Histogram(
		"transfer.upload.duration",
		otelmetric.WithDescription("Duration of single file uploads in seconds"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	uploadCount, err = m.Int64Counter(
		"transfer.upload.count",
		otelmetric.WithDescription("Total number of upload attempts"),
	)
	if err != nil {
		return err
	}

	uploadBytes, err = m.Int64Counter(
		"transfer.upload.bytes",
		otelmetric.WithDescription("Total bytes uploaded"),
		otelmetric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	directoriesCreated, err = m.Int64Counter(
		"transfer.directories.created",
		otelmetric.WithDescription("Remote directories created while materializing paths"),
	)
	if err != nil {
		return err
	}

	envelopeOutcome, err = m.Int64Counter(
		"transfer.envelope.outcome",
		otelmetric.WithDescription("Final phase of cancellable session operations"),
	)
	if err != nil {
		return err
	}

	sessionOpenDuration, err = m.Float64Histogram(
		"transfer.session.open.duration",
		otelmetric.WithDescription("Duration of session opens in seconds"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	sessionErrors, err = m.Int64Counter(
		"transfer.session.errors",
		otelmetric.WithDescription("Errors returned by engine sessions"),
	)
	if err != nil {
		return err
	}

	journalWrites, err = m.Int64Counter(
		"transfer.journal.writes",
		otelmetric.WithDescription("Transfer journal writes"),
	)
	if err != nil {
		return err
	}

	apiRequestDuration, err = m.Float64Histogram(
		"transfer.api.request.duration",
		otelmetric.WithDescription("Duration of API requests in seconds"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	apiRequestCount, err = m.Int64Counter(
		"transfer.api.request.count",
		otelmetric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return err
	}

	apiRequestErrors, err = m.Int64Counter(
		"transfer.api.request.errors",
		otelmetric.WithDescription("Total number of API request errors"),
	)
	if err != nil {
		return err
	}

	apiJobsActive, err = m.Int64UpDownCounter(
		"transfer.api.jobs.active",
		otelmetric.WithDescription("Upload jobs currently running"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordUpload records one upload attempt with its final status.
func RecordUpload(ctx context.Context, duration float64, protocol, status string) {
	attrs := otelmetric.WithAttributes(
		attribute.String("protocol", protocol),
		attribute.String("status", status),
	)
	if uploadDuration != nil {
		uploadDuration.Record(ctx, duration, attrs)
	}
	if uploadCount != nil {
		uploadCount.Add(ctx, 1, attrs)
	}
}

func RecordUploadBytes(ctx context.Context, bytes int64, protocol string) {
	if uploadBytes != nil {
		uploadBytes.Add(ctx, bytes, otelmetric.WithAttributes(
			attribute.String("protocol", protocol),
		))
	}
}

func RecordDirectoriesCreated(ctx context.Context, count int64) {
	if directoriesCreated != nil && count > 0 {
		directoriesCreated.Add(ctx, count)
	}
}

// RecordEnvelopeOutcome records the phase a cancellable operation ended in.
func RecordEnvelopeOutcome(ctx context.Context, phase string) {
	if envelopeOutcome != nil {
		envelopeOutcome.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("phase", phase),
		))
	}
}

func RecordSessionOpen(ctx context.Context, duration float64, protocol, status string) {
	if sessionOpenDuration != nil {
		sessionOpenDuration.Record(ctx, duration, otelmetric.WithAttributes(
			attribute.String("protocol", protocol),
			attribute.String("status", status),
		))
	}
}

func RecordSessionError(ctx context.Context, protocol, operation, errorType string) {
	if sessionErrors != nil {
		sessionErrors.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("protocol", protocol),
			attribute.String("operation", operation),
			attribute.String("error_type", errorType),
		))
	}
}

func RecordJournalWrite(ctx context.Context, backend, status string) {
	if journalWrites != nil {
		journalWrites.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		))
	}
}

// RecordAPIRequestDuration records the duration of an API request
func RecordAPIRequestDuration(duration float64, endpoint, method, status string) {
	if apiRequestDuration != nil {
		apiRequestDuration.Record(
			context.Background(),
			duration,
			otelmetric.WithAttributes(
				attribute.String("endpoint", endpoint),
				attribute.String("method", method),
				attribute.String("status", status),
			),
		)
	}
}

// RecordAPIRequest records an API request
func RecordAPIRequest(endpoint, method, status string) {
	if apiRequestCount != nil {
		apiRequestCount.Add(
			context.Background(),
			1,
			otelmetric.WithAttributes(
				attribute.String("endpoint", endpoint),
				attribute.String("method", method),
				attribute.String("status", status),
			),
		)
	}
}

// RecordAPIRequestError records an API request error
func RecordAPIRequestError(endpoint, method, errorType string) {
	if apiRequestErrors != nil {
		apiRequestErrors.Add(
			context.Background(),
			1,
			otelmetric.WithAttributes(
				attribute.String("endpoint", endpoint),
				attribute.String("method", method),
				attribute.String("error_type", errorType),
			),
		)
	}
}

// RecordAPIJobs adjusts the number of running upload jobs by delta.
func RecordAPIJobs(delta int64) {
	if apiJobsActive != nil {
		apiJobsActive.Add(context.Background(), delta)
	}
}
