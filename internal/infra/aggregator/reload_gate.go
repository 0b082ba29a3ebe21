package aggregator

import "context"

// reloadGate admits one registry reload at a time while letting waiters
// give up when their context ends.
type reloadGate chan struct{}

func newReloadGate() reloadGate {
	return make(reloadGate, 1)
}

func (g reloadGate) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g reloadGate) release() {
	select {
	case <-g:
	default:
	}
}
