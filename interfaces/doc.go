// Package interfaces defines the storage backend contract shared by the
// fallback storage, its backends and its clients, separating interface
// definitions from implementations.
//
// # Capabilities
//
// Every backend implements StorageBackend, which only identifies it. File
// operations are split into one small interface per operation (Opener,
// Saver, Deleter, Exister, Sizer, the time accessors, Lister, URLProvider,
// ValidNamer, AvailableNamer, Pather). A backend implements exactly the
// operations it supports and callers discover them with a type assertion,
// so a read-only backend simply has no Saver or Deleter.
//
// AvailabilityChecker is optional: backends that can cheaply tell they are
// unreachable implement it and are skipped instead of timing out.
//
// # Locations
//
// Backends are described by location URIs parsed into
// StorageBackendLocation:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// StorageBackendFactory turns a location into a backend.
//
// # Errors
//
// Backends report conditions through the sentinel errors of this package
// (ErrContentNotFound, ErrBackendUnavailable, ErrUnsupported, ErrReadOnly,
// ErrInvalidName, ErrInvalidLocationURI), wrapped with %w so errors.Is
// works across layers.
package interfaces
