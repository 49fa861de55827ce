package interfaces

import "context"

// ObjectInfo describes one stored object inside a listed folder.
type ObjectInfo struct {
	Name string `json:"name"`
}

// ObjectStore is the durable asset storage behind the cache-or-generate
// handlers. Paths are relative to the configured bucket.
type ObjectStore interface {
	// List returns the objects directly under the given folder prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Upload writes data to path. With upsert an existing object is
	// overwritten, otherwise the provider rejects the write.
	Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error
	// PublicURL resolves the public URL for an object path. Purely
	// computational, does not verify existence.
	PublicURL(path string) string
	// Download fetches an arbitrary URL. Used by the verbatim upload
	// endpoint to mirror external files into storage.
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// URLCache caches resolved public URLs for confirmed-existing objects to
// avoid repeated storage listings.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, url string)
	Delete(ctx context.Context, key string)
}
