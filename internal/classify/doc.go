// Package classify defines the classification domain model and the HTTP
// client for the remote classification API.
//
// The client makes exactly one attempt per call. Retry and backoff are the
// sync queue's responsibility, so transport and server failures surface as
// plain errors here.
package classify
