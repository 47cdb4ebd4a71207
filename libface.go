// Package libface queries third-party face recognition providers through a
// single uniform interface: does this face already have an identifier, and
// if not, create one. Providers are enabled with their credentials, queried
// individually or fanned out together, and their idiosyncratic responses and
// error payloads are translated into one shared taxonomy (see the errors
// package).
//
//	rec := libface.New(logger)
//	if err := rec.EnableKairos(config.Kairos{...}); err != nil { ... }
//	responses, err := rec.Create(ctx, imageBase64)
package libface

import (
	"context"

	"go.uber.org/zap"

	"github.com/atticlab/libface/config"
	"github.com/atticlab/libface/services/recognition"
	"github.com/atticlab/libface/services/recognition/findface"
	"github.com/atticlab/libface/services/recognition/kairos"
	"github.com/atticlab/libface/services/recognition/visionlabs"
)

// Response is re-exported for callers of the façade.
type Response = recognition.Response

// Recognition is the public entry point. The zero set of enabled providers
// is valid; operations over it return empty results.
type Recognition struct {
	svc    *recognition.Service
	logger *zap.Logger
}

// New creates a Recognition with no providers enabled. The logger is
// optional; nil disables diagnostics.
func New(logger *zap.Logger) *Recognition {
	return &Recognition{
		svc:    recognition.NewService(logger),
		logger: logger,
	}
}

// EnableKairos validates the configuration and enables the Kairos provider.
func (r *Recognition) EnableKairos(cfg config.Kairos) error {
	adapter, err := kairos.New(cfg, r.logger)
	if err != nil {
		return err
	}
	r.svc.Enable(adapter)
	return nil
}

// EnableVisionLabs validates the configuration and enables the VisionLabs
// provider.
func (r *Recognition) EnableVisionLabs(cfg config.VisionLabs) error {
	adapter, err := visionlabs.New(cfg, r.logger)
	if err != nil {
		return err
	}
	r.svc.Enable(adapter)
	return nil
}

// EnableFindFace validates the configuration and enables the FindFace
// provider.
func (r *Recognition) EnableFindFace(cfg config.FindFace) error {
	adapter, err := findface.New(cfg, r.logger)
	if err != nil {
		return err
	}
	r.svc.Enable(adapter)
	return nil
}

// Recognize looks up an existing face identifier with one enabled provider.
// It fails with UnknownService when the id is not enabled.
func (r *Recognition) Recognize(ctx context.Context, serviceID int, imageBase64 string) (*Response, error) {
	return r.svc.Recognize(ctx, serviceID, imageBase64)
}

// Create returns an existing or newly enrolled face identifier from every
// enabled provider sequentially. Any single provider failure aborts the
// whole operation.
func (r *Recognition) Create(ctx context.Context, imageBase64 string) (map[int]*Response, error) {
	return r.svc.Create(ctx, imageBase64)
}

// CreateAsync runs the recognition step on every enabled provider
// concurrently, best-effort: failing providers are logged and omitted from
// the result.
func (r *Recognition) CreateAsync(ctx context.Context, imageBase64 string) (map[int]*Response, error) {
	return r.svc.CreateAsync(ctx, imageBase64)
}

// CheckServicesAvailability probes every enabled provider and never fails.
func (r *Recognition) CheckServicesAvailability(ctx context.Context) map[int]bool {
	return r.svc.CheckServicesAvailability(ctx)
}

// ServiceIDs returns the ids of enabled providers in registration order.
func (r *Recognition) ServiceIDs() []int {
	return r.svc.ServiceIDs()
}

// ServiceNameByID returns the human-readable name of an enabled provider.
func (r *Recognition) ServiceNameByID(id int) (string, error) {
	return r.svc.ServiceNameByID(id)
}

// ServiceLimitByID returns the alert threshold of an enabled provider.
func (r *Recognition) ServiceLimitByID(id int) (int, error) {
	return r.svc.ServiceLimitByID(id)
}

// RemoveServiceByID disables a provider. Removing an unknown id is a no-op.
func (r *Recognition) RemoveServiceByID(id int) {
	r.svc.RemoveServiceByID(id)
}
