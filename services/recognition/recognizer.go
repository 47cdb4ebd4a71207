// Package recognition contains the orchestration core: the capability
// contract every provider adapter implements, the registry of enabled
// adapters and the service that fans a single normalized image out to them.
package recognition

import (
	"context"

	"github.com/atticlab/libface/internal/imaging"
)

// Recognizer is the capability contract implemented by every provider
// adapter. The adapter set is fixed at compile time; ids are small positive
// integers unique across all providers.
type Recognizer interface {
	// ServiceID returns the adapter's fixed id.
	ServiceID() int

	// ServiceName returns a stable human-readable identifier.
	ServiceName() string

	// Limit returns the response-count alert threshold from the adapter's
	// configuration.
	Limit() int

	// CheckAvailability probes the provider's status endpoint. Transport
	// failures are swallowed and reported as unavailable, never as errors.
	CheckAvailability(ctx context.Context) bool

	// FaceID looks up an existing face identifier for the image. An empty
	// id with a nil error means the provider found no match.
	FaceID(ctx context.Context, img *imaging.Image) (string, error)

	// CreateFaceID returns an existing identifier when the image already
	// matches an enrolled face, and enrolls it otherwise. Calling it twice
	// with the same image returns the same identifier both times.
	CreateFaceID(ctx context.Context, img *imaging.Image) (string, error)
}

// sequentialOnly is implemented by adapters whose recognition step performs
// side-effecting setup and therefore cannot be fanned out concurrently.
type sequentialOnly interface {
	SequentialOnly() bool
}
