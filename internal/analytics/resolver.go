package analytics

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"nugget/internal/catalog"
	"nugget/internal/shared/logging"
)

// Resolver maps bare field names onto the live property metadata,
// attempting the custom-parameter prefixes in order when a name does not
// resolve directly. Metadata is cached per property.
type Resolver struct {
	svc    Service
	cache  *lru.Cache[string, *Metadata]
	logger logging.Logger
}

// NewResolver builds a resolver in front of the given service.
func NewResolver(svc Service, cacheSize int, logger logging.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[string, *Metadata](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{svc: svc, cache: cache, logger: logging.OrNop(logger)}, nil
}

// Metadata returns the property metadata, from cache when warm.
func (r *Resolver) Metadata(ctx context.Context, propertyID string) (*Metadata, error) {
	if meta, ok := r.cache.Get(propertyID); ok {
		return meta, nil
	}
	meta, err := r.svc.GetMetadata(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(propertyID, meta)
	return meta, nil
}

// Invalidate drops the cached metadata for a property.
func (r *Resolver) Invalidate(propertyID string) {
	r.cache.Remove(propertyID)
}

// ResolveDimension maps name onto a live dimension api_name. When metadata
// is unavailable the name is returned with a customEvent: prefix applied
// if it looks like a bare custom parameter.
func (r *Resolver) ResolveDimension(ctx context.Context, propertyID, name string) string {
	meta, err := r.Metadata(ctx, propertyID)
	if err != nil {
		r.logger.Warn("metadata unavailable for %s, resolving %q offline: %v", propertyID, name, err)
		return ResolveAgainst(name, nil)
	}
	return ResolveAgainst(name, meta.Dimensions)
}

// ResolveMetric maps name onto a live metric api_name.
func (r *Resolver) ResolveMetric(ctx context.Context, propertyID, name string) string {
	meta, err := r.Metadata(ctx, propertyID)
	if err != nil {
		return name
	}
	return ResolveAgainst(name, meta.Metrics)
}

// ResolveAgainst resolves a name against a known api_name list: the exact
// name first, then each custom prefix in order. Unknown names that carry
// no prefix fall back to customEvent:, the most common parameter scope.
func ResolveAgainst(name string, known []string) string {
	if name == "" {
		return name
	}
	if len(known) > 0 {
		if containsName(known, name) {
			return name
		}
		for _, prefix := range catalog.CustomPrefixes {
			if containsName(known, prefix+name) {
				return prefix + name
			}
		}
	}
	if catalog.IsCustomKey(name) || !looksLikeCustomParam(name) {
		return name
	}
	return catalog.CustomPrefixes[0] + name
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// looksLikeCustomParam reports whether a bare name reads like an event
// parameter (snake_case identifier) rather than a standard api_name.
func looksLikeCustomParam(name string) bool {
	if !strings.Contains(name, "_") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
