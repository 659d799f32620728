package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. Useful
// when several sessions share one Redis instance and must not see each
// other's drawings.
//
// Example usage:
//
//	// Session-specific keys
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "session:abc123:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey generates a prefixed key for a computed drawing.
func (k *ScopedKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(graphHash, opts)
}

// ExportKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ExportKey(layoutHash string, opts ExportKeyOpts) string {
	return k.prefix + k.inner.ExportKey(layoutHash, opts)
}

// Ensure ScopedKeyer implements Keyer.
var _ Keyer = (*ScopedKeyer)(nil)
