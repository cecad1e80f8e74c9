// Package cache defines the disk-backed result store laid out as
// StoragePath/<tool>/<revision>/<hash>/<flat-name>. It exposes existence,
// listing, handle-based reads and batched writes. Reads are confined to the
// storage root (symlinks included) before any file is opened; writes land in a
// staging directory beside the entry and are promoted by rename, so readers
// never see a half-written file and a brand-new entry appears all at once.
// HTTP handlers and the catalog scanner depend on this package instead of
// touching the filesystem directly.
package cache
