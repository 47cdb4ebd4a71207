package recognition

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/imaging"
	"github.com/atticlab/libface/internal/observability"
)

// Service is the recognition orchestrator. It normalizes an input image once
// per operation and dispatches it to one or all enabled adapters.
//
// Create and CreateAsync deliberately carry different contracts: Create is
// all-or-nothing so callers know enrollment is consistent across every
// provider, while CreateAsync is a best-effort concurrent lookup where a
// failing provider is logged and omitted from the result.
type Service struct {
	registry *Registry
	logger   *zap.Logger
}

// NewService creates an orchestrator with no enabled adapters. The logger
// may be nil.
func NewService(logger *zap.Logger) *Service {
	return &Service{
		registry: NewRegistry(),
		logger:   observability.OrNop(logger),
	}
}

// Enable registers an adapter.
func (s *Service) Enable(rec Recognizer) {
	s.logger.Debug("enabling service",
		zap.Int("service_id", rec.ServiceID()), zap.String("service", rec.ServiceName()))
	s.registry.Enable(rec)
}

// Recognize looks up an existing face identifier with one service.
func (s *Service) Recognize(ctx context.Context, serviceID int, rawImage string) (*Response, error) {
	s.logger.Debug("start recognizing face id")

	rec, ok := s.registry.Get(serviceID)
	if !ok {
		s.logger.Error("service not configured", zap.Int("service_id", serviceID))
		return nil, apperrors.New(apperrors.KindUnknownService)
	}

	img, err := imaging.Normalize(rawImage, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("recognizing", zap.String("service", rec.ServiceName()))
	faceID, err := rec.FaceID(ctx, img)
	if err != nil {
		return nil, apperrors.Classify(err)
	}

	return NewResponse(serviceID, faceID)
}

// Create returns an existing or newly enrolled face identifier from every
// enabled service, calling them sequentially in registration order. A
// failure from any one adapter aborts the whole operation; no partial result
// is returned.
func (s *Service) Create(ctx context.Context, rawImage string) (map[int]*Response, error) {
	s.logger.Debug("start creating face id")

	img, err := imaging.Normalize(rawImage, s.logger)
	if err != nil {
		return nil, err
	}

	responses := make(map[int]*Response)
	for _, rec := range s.registry.All() {
		s.logger.Debug("creating on service", zap.String("service", rec.ServiceName()))

		faceID, err := rec.CreateFaceID(ctx, img)
		if err != nil {
			return nil, apperrors.Classify(err)
		}

		resp, err := NewResponse(rec.ServiceID(), faceID)
		if err != nil {
			return nil, err
		}
		responses[rec.ServiceID()] = resp
	}

	return responses, nil
}

// CreateAsync issues the recognition step to every enabled service
// concurrently and settles all outcomes independently: a provider failure is
// logged and omitted from the result instead of aborting the batch. Adapters
// whose recognition flow cannot be fanned out are skipped. The call blocks
// until every provider has settled; individual request timeouts bound how
// long a stuck provider can delay the join.
func (s *Service) CreateAsync(ctx context.Context, rawImage string) (map[int]*Response, error) {
	img, err := imaging.Normalize(rawImage, s.logger)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[int]*Response)
	)

	for _, rec := range s.registry.All() {
		if seq, ok := rec.(sequentialOnly); ok && seq.SequentialOnly() {
			s.logger.Debug("skipping sequential-only service in concurrent create",
				zap.String("service", rec.ServiceName()))
			continue
		}

		wg.Add(1)
		go func(rec Recognizer) {
			defer wg.Done()

			faceID, err := rec.FaceID(ctx, img)
			if err != nil {
				s.logger.Error("service error during concurrent recognition",
					zap.String("service", rec.ServiceName()), zap.Error(err))
				return
			}

			resp, err := NewResponse(rec.ServiceID(), faceID)
			if err != nil {
				s.logger.Error("invalid response from service",
					zap.String("service", rec.ServiceName()), zap.Error(err))
				return
			}

			mu.Lock()
			results[rec.ServiceID()] = resp
			mu.Unlock()
		}(rec)
	}

	wg.Wait()
	return results, nil
}

// CheckServicesAvailability probes every enabled service. It never fails;
// unreachable providers report false.
func (s *Service) CheckServicesAvailability(ctx context.Context) map[int]bool {
	results := make(map[int]bool)
	for _, rec := range s.registry.All() {
		results[rec.ServiceID()] = rec.CheckAvailability(ctx)
	}
	return results
}

// ServiceIDs returns the ids of enabled services in registration order.
func (s *Service) ServiceIDs() []int {
	return s.registry.IDs()
}

// ServiceNameByID returns the human-readable name of an enabled service.
func (s *Service) ServiceNameByID(id int) (string, error) {
	rec, ok := s.registry.Get(id)
	if !ok {
		return "", apperrors.New(apperrors.KindUnknownService)
	}
	return rec.ServiceName(), nil
}

// ServiceLimitByID returns the alert threshold of an enabled service.
func (s *Service) ServiceLimitByID(id int) (int, error) {
	rec, ok := s.registry.Get(id)
	if !ok {
		return 0, apperrors.New(apperrors.KindUnknownService)
	}
	return rec.Limit(), nil
}

// RemoveServiceByID disables a service. Removing an unknown id is a no-op.
func (s *Service) RemoveServiceByID(id int) {
	s.logger.Debug("remove service by id", zap.Int("service_id", id))

	if _, ok := s.registry.Get(id); !ok {
		s.logger.Info("trying to remove service that is not enabled", zap.Int("service_id", id))
		return
	}
	s.registry.Disable(id)
}
