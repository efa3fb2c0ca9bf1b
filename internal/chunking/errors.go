package chunking

import (
	"fmt"

	"deckforge/internal/services"
)

// ErrUnsupportedFormat indicates no sampling strategy is registered for the
// declared document format. Non-retryable.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported document format", services.ErrMalformedInput)

// ErrEmptyDocument indicates the document held no content after
// normalization. Non-retryable.
var ErrEmptyDocument = fmt.Errorf("%w: empty document", services.ErrMalformedInput)
