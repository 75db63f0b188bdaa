package vector

import "context"

// NoopIndex is bound when similarity search is disabled. It accepts
// everything and finds nothing, so callers never branch on capability.
type NoopIndex struct{}

// NewNoopIndex returns the disabled index.
func NewNoopIndex() *NoopIndex {
	return &NoopIndex{}
}

func (n *NoopIndex) Add(_ context.Context, _ Document) error {
	return nil
}

func (n *NoopIndex) Query(_ context.Context, _ string, _ int, _ Filter) ([]Match, error) {
	return nil, nil
}

func (n *NoopIndex) Count(_ context.Context) (int, error) {
	return 0, nil
}

func (n *NoopIndex) Close() error {
	return nil
}
