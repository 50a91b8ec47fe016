package port

import (
	"github.com/vertextoedge/clipkeep/internal/domain"
)

// PolicySource provides the retention policy. It is consulted on every
// eviction decision, so implementations must not cache stale values.
type PolicySource interface {
	Policy() domain.RetentionPolicy
}

// StaticPolicy is a PolicySource with fixed bounds
type StaticPolicy domain.RetentionPolicy

// Policy returns the fixed bounds
func (p StaticPolicy) Policy() domain.RetentionPolicy {
	return domain.RetentionPolicy(p)
}
