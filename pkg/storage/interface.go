package storage

// SizeStore remembers successful size probes so repeated discovery of the same page
// does not re-probe every image. Only known sizes are stored.
type SizeStore interface {
	// GetSize returns the cached byte length for a resource URL and whether it was present
	GetSize(resourceURL string) (size int64, found bool, err error)

	// PutSize caches a known byte length; negative sizes are ignored
	PutSize(resourceURL string, size int64) error

	// Len returns the number of live (unexpired) entries
	Len() (int, error)

	// Close releases the store
	Close() error
}
