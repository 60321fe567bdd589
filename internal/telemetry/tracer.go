package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans.
// HTTP keys follow the tracing conventions of the service's upstream callers;
// template keys use the "template." prefix.
const (
	// HTTP request attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPTarget     = "http.target"
	AttrHTTPFlavor     = "http.flavor"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPUserAgent  = "http.user_agent"

	// Template lifecycle attributes
	AttrTemplateGeneration = "template.generation"
	AttrTemplateRoot       = "template.root"
	AttrTemplateCount      = "template.count"
	AttrTemplateName       = "template.name"

	// Watch attributes
	AttrWatchRoot  = "watch.root"
	AttrWatchFiles = "watch.files"
)

// Span names.
const (
	SpanRequest        = "http.request"
	SpanTemplateReload = "template.reload"
	SpanTemplateRender = "template.render"
)

// HTTPMethod returns an attribute for the HTTP request method
func HTTPMethod(method string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, method)
}

// HTTPTarget returns an attribute for the request target URI
func HTTPTarget(target string) attribute.KeyValue {
	return attribute.String(AttrHTTPTarget, target)
}

// HTTPFlavor returns an attribute for the HTTP protocol version
func HTTPFlavor(flavor string) attribute.KeyValue {
	return attribute.String(AttrHTTPFlavor, flavor)
}

// HTTPStatusCode returns an attribute for the numeric response status
func HTTPStatusCode(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatusCode, code)
}

// HTTPUserAgent returns an attribute for the client User-Agent header
func HTTPUserAgent(ua string) attribute.KeyValue {
	return attribute.String(AttrHTTPUserAgent, ua)
}

// TemplateGeneration returns an attribute for a snapshot generation
func TemplateGeneration(gen uint64) attribute.KeyValue {
	return attribute.Int64(AttrTemplateGeneration, int64(gen))
}

// TemplateRoot returns an attribute for a template root directory
func TemplateRoot(root string) attribute.KeyValue {
	return attribute.String(AttrTemplateRoot, root)
}

// TemplateCount returns an attribute for the number of compiled templates
func TemplateCount(n int) attribute.KeyValue {
	return attribute.Int(AttrTemplateCount, n)
}

// TemplateName returns an attribute for a rendered template name
func TemplateName(name string) attribute.KeyValue {
	return attribute.String(AttrTemplateName, name)
}

// WatchRoot returns an attribute for a watched root directory
func WatchRoot(root string) attribute.KeyValue {
	return attribute.String(AttrWatchRoot, root)
}

// WatchFiles returns an attribute for the files in a change batch
func WatchFiles(files []string) attribute.KeyValue {
	return attribute.StringSlice(AttrWatchFiles, files)
}

// StartReloadSpan starts a span for a template reload triggered by a change batch.
func StartReloadSpan(ctx context.Context, root string, files []string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanTemplateReload, trace.WithAttributes(
		WatchRoot(root),
		WatchFiles(files),
	))
}

// StartRenderSpan starts a span for rendering a single template.
func StartRenderSpan(ctx context.Context, name string, generation uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanTemplateRender, trace.WithAttributes(
		TemplateName(name),
		TemplateGeneration(generation),
	))
}
