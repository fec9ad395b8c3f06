// Package catalog is the storage collaborator of the realtime server: the
// Store interface over the product table, its PostgreSQL and in-memory
// implementations, and the Normalizer that maps client field names onto the
// canonical product schema.
package catalog
