// Package transport defines the collaborator interface the upload engine
// uses to probe for and transmit chunks, plus two concrete adapters: an HTTP
// multipart adapter speaking the resumable wire format and an S3 adapter
// storing one object per chunk.
//
// The engine owns the retry policy; adapters report outcomes and classify
// failures as transient or permanent, nothing more.
package transport
