package shared

// Handler receives readiness notifications from a Poller. Both callbacks are
// invoked on the poller's dispatch goroutine, one at a time.
type Handler interface {
	// OnReadable is called when the registered descriptor is ready for reading
	OnReadable()

	// OnWritable is called when the registered descriptor is ready for writing
	OnWritable()
}

// Registration is an opaque token for a descriptor registered with a Poller
type Registration interface {
	// Descriptor returns the registered file descriptor
	Descriptor() int
}

// Poller multiplexes readiness events for registered descriptors. A fresh
// registration starts with no interest in either direction.
type Poller interface {
	// Register adds a descriptor and its handler to the poll set
	Register(fd int, h Handler) (Registration, error)

	// Deregister removes a descriptor from the poll set
	Deregister(reg Registration) error

	// SetReadable enables read-readiness notifications
	SetReadable(reg Registration) error

	// ResetReadable disables read-readiness notifications
	ResetReadable(reg Registration) error

	// SetWritable enables write-readiness notifications
	SetWritable(reg Registration) error

	// ResetWritable disables write-readiness notifications
	ResetWritable(reg Registration) error
}
