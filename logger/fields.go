package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across smartem.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Operations
	FieldOperation = "operation"
	FieldQuery     = "query"
	FieldArgs      = "args"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount     = "count"
	FieldBatchSize = "batch_size"

	// Database
	FieldDriver  = "driver"
	FieldPath    = "path"
	FieldHost    = "host"
	FieldVersion = "version"

	// Imaging hierarchy
	FieldProject    = "project"
	FieldEntity     = "entity"
	FieldAtlasID    = "atlas_id"
	FieldGridSquare = "grid_square"
	FieldFoilHole   = "foil_hole"
	FieldExposure   = "exposure"
	FieldKeys       = "keys"
)

// Context keys for propagating logging context
type contextKey string

const projectKey contextKey = "logger_project"

// WithProject adds a project name to the context for logging
func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey, project)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if project, ok := ctx.Value(projectKey).(string); ok && project != "" {
		fields = append(fields, FieldProject, project)
	}

	return fields
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	api := extract.New(database, db.SQLite,
//	    extract.WithLogger(logger.ComponentLogger("extract")))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
