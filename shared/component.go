package shared

import "context"

// Component is a long-lived server part that must be released when the
// process stops, such as the reactor loop behind a running server.
type Component interface {
	// GetType returns the component type identifier used in shutdown logs
	GetType() string

	// Shutdown releases the component's resources
	Shutdown(ctx context.Context) error
}
