// Package cache provides named, versioned cache partitions for the offline
// cache controller.
//
// A Storage holds any number of partitions keyed by name. Each Partition maps
// a request key (see Keyer) to a stored Response. Entries never expire; a
// partition is dropped as a whole when the controller activates under a new
// version. The Writer type applies a WriteMode to partition puts so callers
// can choose between awaited and best-effort writes.
package cache
