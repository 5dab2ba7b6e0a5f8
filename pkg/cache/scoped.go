package cache

// ScopedKeyer wraps a Keyer with a prefix, giving callers that share one
// backend separate key namespaces.
//
//	apiKeyer := NewScopedKeyer(NewDefaultKeyer(), "api:")
//	cliKeyer := NewDefaultKeyer()
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

// RunKey generates a prefixed run key.
func (k *ScopedKeyer) RunKey(graphHash string, opts RunKeyOpts) string {
	return k.prefix + k.inner.RunKey(graphHash, opts)
}

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(graphHash string) string {
	return k.prefix + k.inner.GraphKey(graphHash)
}
