package obs

import (
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandleSpanError records err on span and marks it as failed, mirroring the
// teacher's mopentelemetry.HandleSpanError helper used at every repository
// and service call site.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}

// SetSpanAttributesFromStruct serializes v to JSON and attaches it to span
// under key, the same shape as mopentelemetry.SetSpanAttributesFromStruct.
func SetSpanAttributesFromStruct(span *trace.Span, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.String(key, string(b)))

	return nil
}
