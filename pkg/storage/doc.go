// Package storage holds document blob backends and shared connection
// helpers.
//
// BlobStore has two implementations: S3Store (AWS S3 or MinIO through
// aws-sdk-go-v2, with an OpenTelemetry span per call) and FileSystemStore for
// local development. NewBlobStore picks one from config.StorageConfig and
// WithMetrics wraps either with Prometheus counters.
//
// Keys are built by DocumentKey:
//
//	orgs/<org_id>/projects/<project_id>/<uuid>-<sanitized filename>
//
// Soft-deleting a document never removes its blob.
//
// The postgres subpackage opens the database pool and maps driver errors to
// apperrors kinds.
package storage
