// Package broadcast fans check-in and payment notifications out to the
// message bus and to live WebSocket listeners.
package broadcast

import (
	"context"
	"errors"

	"github.com/spotevents/spot/internal/application"
)

// Multi publishes to every target and joins their errors.
type Multi []application.Broadcaster

// Publish implements application.Broadcaster.
func (m Multi) Publish(ctx context.Context, notification application.Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Publish(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
