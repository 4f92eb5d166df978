package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared by adapters and usecases.
const (
	AttrEndpoint   = attribute.Key("kopimap.upstream.endpoint")
	AttrAttempt    = attribute.Key("kopimap.upstream.attempt")
	AttrQuery      = attribute.Key("kopimap.query")
	AttrCafeCount  = attribute.Key("kopimap.cafes.count")
	AttrFallback   = attribute.Key("kopimap.cafes.fallback")
	AttrOverrides  = attribute.Key("kopimap.overrides.count")
	AttrCacheState = attribute.Key("kopimap.cache")
)
