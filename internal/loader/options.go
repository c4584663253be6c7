// Package loader implements the property loader (C11): LoadPropertyGraph,
// LoadProperties, and LoadPropertySlice, with read-group batching for
// concurrent slice requests and backend selection by URI scheme.
package loader

// Options configures a LoadPropertyGraph call.
type Options struct {
	// NodeProperties/EdgeProperties name the property columns to
	// materialize; only the named columns are loaded, and an empty slice
	// loads none of that kind (the backend has no "list properties" call).
	NodeProperties []string
	EdgeProperties []string
	// Role is the cache-key role component used for every property this
	// load materializes (see internal/manager.CacheKey).
	Role string
}
