// Package blobstore is the object-store collaborator boundary named in §1
// scope: "File upload to blob storage (treated as an object-store
// collaborator with put(bytes) -> url)". Nothing about the store's backing
// implementation is modeled; callers depend on Store.
package blobstore

import "context"

// Store is the opaque object-store collaborator.
type Store interface {
	// Put uploads bytes under a content-addressed or caller-chosen key and
	// returns a retrievable URL.
	Put(ctx context.Context, key string, contentType string, data []byte) (url string, err error)
}
