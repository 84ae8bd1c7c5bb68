package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on checkout spans.
const (
	RunIDKey   = "bake.run_id"
	StepKey    = "bake.step"
	ConfigKey  = "bake.config"
	TargetsKey = "bake.targets"

	RepoIDKey       = "repo.id"
	RepoVCSKey      = "repo.vcs"
	RepoURLKey      = "repo.url"
	RepoRevisionKey = "repo.revision"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RunAttributes describe a whole checkout run.
func RunAttributes(runID, config string, targets []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(ConfigKey, config),
		attribute.StringSlice(TargetsKey, targets),
	}
}

// StepAttributes describe one pipeline step.
func StepAttributes(step string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(StepKey, step)}
}

// RepoAttributes describe a repository operation. Empty values are omitted.
func RepoAttributes(id, vcs, url, revision string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	attrs = append(attrs, attribute.String(RepoIDKey, id))
	if vcs != "" {
		attrs = append(attrs, attribute.String(RepoVCSKey, vcs))
	}
	if url != "" {
		attrs = append(attrs, attribute.String(RepoURLKey, url))
	}
	if revision != "" {
		attrs = append(attrs, attribute.String(RepoRevisionKey, revision))
	}
	return attrs
}

// ErrorAttributes mark a span as failed.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
