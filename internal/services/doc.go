// Package services contains the API clients for the system's external
// collaborators: the Emby media server and the MDBList and Trakt list
// providers.
//
// The reconciliation engine depends only on the [MediaServer] and
// [ListProvider] interfaces; the concrete clients here are thin, synchronous
// HTTP wrappers with no retry logic of their own beyond the per-provider
// rate limiters. Authentication failures, missing lists/collections and
// transport failures map to distinct sentinel errors from internal/shared so
// callers can report them separately.
package services
