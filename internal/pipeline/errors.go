package pipeline

import "errors"

var (
	// ErrMissingInput means the question or page content was empty.
	ErrMissingInput = errors.New("no question or page content received")
	// ErrUnreadableDocument means no text could be extracted from a document.
	ErrUnreadableDocument = errors.New("could not read text from document")
	// ErrEmbeddingFailure means the embedder failed for chunks or the query.
	ErrEmbeddingFailure = errors.New("embedding failed")
	// ErrIndexFailure means the vector index could not be built or searched.
	ErrIndexFailure = errors.New("vector index failed")
	// ErrGenerationTimeout means the model did not answer in time.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationFailure means the model call failed for any other reason.
	ErrGenerationFailure = errors.New("generation failed")
)
