// Package config loads the service configuration with viper.
//
// Sources are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with BUILDPRO_. Nested keys use underscores:
//
//	BUILDPRO_ENVIRONMENT=production
//	BUILDPRO_DATABASE_URL=postgres://buildpro@db:5432/buildpro
//	BUILDPRO_AUTH_SECRET_KEY=...           # >= 32 chars in production
//	BUILDPRO_AUTH_ACCESS_TOKEN_TTL=15m
//	BUILDPRO_REDIS_URL=redis://redis:6379/0
//	BUILDPRO_STORAGE_BACKEND=s3
//	BUILDPRO_STORAGE_S3_BUCKET=buildpro-documents
//	BUILDPRO_CORS_ALLOWED_ORIGINS=https://app.example.com,https://admin.example.com
//
// Load returns an immutable Config value that is passed to constructors; the
// package keeps no global state.
package config
