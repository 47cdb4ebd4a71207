// Package findface implements the FindFace adapter. FindFace takes
// multipart/form-data photo uploads with token auth; galleries are created
// implicitly on first use. Its recognition step performs that gallery
// bootstrap, so the adapter is excluded from concurrent fan-out.
package findface

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atticlab/libface/config"
	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/imaging"
	"github.com/atticlab/libface/internal/observability"
	"github.com/atticlab/libface/internal/transport"
)

// ServiceID is the fixed FindFace adapter id, unique across all providers.
const ServiceID = 4

const (
	defaultBaseURL = "https://api.findface.pro/v1"
	statusPath     = "/faces"

	// FindFace does heavier server-side processing than the other providers.
	timeout = 30 * time.Second

	// minConfidence is the lowest match confidence accepted as a hit.
	minConfidence = 0.93

	photoField = "photo"
	photoName  = "photo.jpg"
)

// Adapter implements recognition.Recognizer for FindFace.
type Adapter struct {
	cfg     config.FindFace
	baseURL string
	exec    *transport.Executor
	logger  *zap.Logger
}

// New validates the configuration and builds the adapter.
func New(cfg config.FindFace, logger *zap.Logger) (*Adapter, error) {
	log := observability.OrNop(logger)
	log.Debug("enabling service",
		zap.String("service", "FindFace"),
		zap.String("gallery_name", cfg.GalleryName))

	if err := cfg.Validate(); err != nil {
		log.Error("failed to validate config",
			zap.String("service", "FindFace"), zap.Error(err))
		return nil, err
	}

	baseURL := defaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Adapter{
		cfg:     cfg,
		baseURL: baseURL,
		exec:    transport.New(timeout, log),
		logger:  log,
	}, nil
}

// ServiceID returns the fixed adapter id.
func (a *Adapter) ServiceID() int { return ServiceID }

// ServiceName returns the stable human-readable identifier.
func (a *Adapter) ServiceName() string { return "FindFace" }

// Limit returns the response-count alert threshold.
func (a *Adapter) Limit() int { return a.cfg.Limit }

// SequentialOnly reports that this adapter cannot join concurrent fan-out:
// its recognition flow creates the target gallery as a side effect.
func (a *Adapter) SequentialOnly() bool { return true }

// CheckAvailability probes the faces endpoint. FindFace answers 401 to
// unauthenticated requests when it is up.
func (a *Adapter) CheckAvailability(ctx context.Context) bool {
	resp, err := a.exec.Execute(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    a.baseURL + statusPath,
	})
	if err != nil {
		a.logger.Error("error while checking service availability",
			zap.String("service", a.ServiceName()), zap.Error(err))
		return false
	}
	return resp.StatusCode == http.StatusUnauthorized
}

// FaceID identifies the image against the configured gallery. Empty means
// no match reached the confidence threshold.
func (a *Adapter) FaceID(ctx context.Context, img *imaging.Image) (string, error) {
	if err := a.ensureGalleryExists(ctx); err != nil {
		return "", err
	}

	url := a.baseURL + "/faces/gallery/" + a.cfg.GalleryName + "/identify/"
	resp, err := a.exec.Execute(ctx, a.photoRequest(url, img))
	if err != nil {
		return "", err
	}
	return a.parseIdentifyResponse(resp)
}

// CreateFaceID returns an existing match or enrolls the face into the
// gallery and returns the new identifier.
func (a *Adapter) CreateFaceID(ctx context.Context, img *imaging.Image) (string, error) {
	faceID, err := a.FaceID(ctx, img)
	if err != nil || faceID != "" {
		return faceID, err
	}

	url := a.baseURL + "/face/?galleries=" + a.cfg.GalleryName
	resp, err := a.exec.Execute(ctx, a.photoRequest(url, img))
	if err != nil {
		return "", err
	}
	return a.parseCreateResponse(resp)
}

// ensureGalleryExists creates the configured gallery before every
// recognize/create call; creating an existing gallery is harmless. The
// extra round trip is deliberate: the adapter stays stateless even when the
// gallery is deleted externally between calls.
func (a *Adapter) ensureGalleryExists(ctx context.Context) error {
	_, err := a.exec.Execute(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/galleries/" + a.cfg.GalleryName,
		Headers: map[string]string{"Authorization": "Token " + a.cfg.Token},
	})
	return err
}

func (a *Adapter) photoRequest(url string, img *imaging.Image) *transport.Request {
	return &transport.Request{
		Method:  http.MethodPost,
		URL:     url,
		Headers: map[string]string{"Authorization": "Token " + a.cfg.Token},
		Files: []transport.FormFile{
			{Field: photoField, FileName: photoName, Content: img.Bytes()},
		},
	}
}

// identifyResponse keys match lists by the uploaded photo name.
type identifyResponse struct {
	Results map[string][]struct {
		Confidence float64 `json:"confidence"`
		Face       struct {
			ID json.Number `json:"id"`
		} `json:"face"`
	} `json:"results"`
}

// createResponse lists the enrolled faces.
type createResponse struct {
	Results []struct {
		ID json.Number `json:"id"`
	} `json:"results"`
}

// errorEnvelope is the FindFace error payload.
type errorEnvelope struct {
	Code   string `json:"code"`
	Param  string `json:"param"`
	Reason string `json:"reason"`
}

func (a *Adapter) parseIdentifyResponse(resp *transport.Response) (string, error) {
	if err := a.precheck(resp); err != nil {
		return "", err
	}

	var data identifyResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		a.logger.Error("response is not a json string", zap.String("service", a.ServiceName()))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}

	if len(data.Results) == 0 {
		a.logger.Error("unexpected response from FindFace, no results",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}
	if len(data.Results) > 1 {
		return "", apperrors.New(apperrors.KindManyFacesFound)
	}

	for _, matches := range data.Results {
		if len(matches) == 0 {
			return "", nil
		}
		if matches[0].Confidence >= minConfidence {
			return matches[0].Face.ID.String(), nil
		}
	}
	return "", nil
}

func (a *Adapter) parseCreateResponse(resp *transport.Response) (string, error) {
	if err := a.precheck(resp); err != nil {
		return "", err
	}

	var data createResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		a.logger.Error("response is not a json string", zap.String("service", a.ServiceName()))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}

	if len(data.Results) == 0 {
		a.logger.Error("unexpected response from FindFace, no results",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}
	if len(data.Results) > 1 {
		return "", apperrors.New(apperrors.KindManyFacesFound)
	}
	if data.Results[0].ID.String() == "" {
		a.logger.Error("unexpected response from FindFace, no face id",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}

	return data.Results[0].ID.String(), nil
}

// precheck rejects empty bodies and translates non-200 error payloads.
func (a *Adapter) precheck(resp *transport.Response) error {
	if len(resp.Body) == 0 {
		a.logger.Error("empty response", zap.String("service", a.ServiceName()))
		return apperrors.New(apperrors.KindBadServiceResponse)
	}
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		a.logger.Error("response is not a json string", zap.String("service", a.ServiceName()))
		return apperrors.New(apperrors.KindBadServiceResponse)
	}
	return a.checkResponseErrors(&env)
}

func (a *Adapter) checkResponseErrors(env *errorEnvelope) error {
	switch env.Code {
	case "AUTH_FAILED":
		a.logger.Error("invalid token for FindFace", zap.String("reason", env.Reason))
		return apperrors.New(apperrors.KindInvalidConfig)
	case "BAD_IMAGE":
		a.logger.Error("unsupported type of image", zap.String("reason", env.Reason))
		return apperrors.New(apperrors.KindInvalidImage)
	case "NO_FACES":
		a.logger.Error("no faces were found", zap.String("reason", env.Reason))
		return apperrors.New(apperrors.KindNoFacesFound)
	case "BAD_PARAM":
		switch env.Param {
		case "galleries":
			a.logger.Error("invalid gallery for FindFace", zap.String("reason", env.Reason))
			return apperrors.New(apperrors.KindInvalidConfig)
		case "photo":
			a.logger.Error("invalid photo for FindFace", zap.String("reason", env.Reason))
			return apperrors.New(apperrors.KindInvalidImage)
		}
	}

	a.logger.Error("unexpected error response from FindFace",
		zap.String("code", env.Code), zap.String("reason", env.Reason))
	return apperrors.New(apperrors.KindBadServiceResponse)
}
