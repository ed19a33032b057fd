package rag

import "errors"

// Error taxonomy shared by every component of the answer pipeline. Callers
// wrap these with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrConfig reports a missing credential or identifier. It is fatal at
	// process start and never produced per request.
	ErrConfig = errors.New("configuration error")

	// ErrNotInitialized reports a client handle used before its
	// initialization was started. It indicates a wiring bug.
	ErrNotInitialized = errors.New("client not initialized")

	// ErrUpstream reports any network, auth, rate-limit or timeout failure
	// talking to the embedding service, the vector index or the model.
	ErrUpstream = errors.New("upstream service error")

	// ErrEmptyResult reports a retrieval that returned zero matches. It is
	// not fatal: callers degrade to an empty context.
	ErrEmptyResult = errors.New("no matching documents")

	// ErrValidation reports malformed input, e.g. an empty query.
	ErrValidation = errors.New("invalid input")
)
