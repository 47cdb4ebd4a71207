// Package kairos implements the Kairos face recognition adapter. Kairos
// speaks JSON with app_id/app_key auth headers and exact-match semantics:
// a recognized image carries the subject id it was enrolled under.
package kairos

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atticlab/libface/config"
	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/imaging"
	"github.com/atticlab/libface/internal/observability"
	"github.com/atticlab/libface/internal/transport"
)

// ServiceID is the fixed Kairos adapter id, unique across all providers.
const ServiceID = 2

const (
	defaultBaseURL = "http://api.kairos.com"
	statusPath     = "/v2/"
	timeout        = 10 * time.Second
)

// Adapter implements recognition.Recognizer for Kairos.
type Adapter struct {
	cfg     config.Kairos
	baseURL string
	exec    *transport.Executor
	logger  *zap.Logger
}

// New validates the configuration and builds the adapter. An invalid
// configuration fails with InvalidConfig; the adapter never holds one.
func New(cfg config.Kairos, logger *zap.Logger) (*Adapter, error) {
	log := observability.OrNop(logger)
	log.Debug("enabling service",
		zap.String("service", "Kairos"),
		zap.String("application_id", cfg.ApplicationID),
		zap.String("gallery_name", cfg.GalleryName))

	if err := cfg.Validate(); err != nil {
		log.Error("failed to validate config",
			zap.String("service", "Kairos"), zap.Error(err))
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
func (a *Adapter) ServiceName() string { return "Kairos" }

// Limit returns the response-count alert threshold.
func (a *Adapter) Limit() int { return a.cfg.Limit }

// CheckAvailability probes the status endpoint. Kairos answers 403 to
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
	return resp.StatusCode == http.StatusForbidden
}

// FaceID looks up an existing subject id for the image. Empty means the
// gallery holds no match.
func (a *Adapter) FaceID(ctx context.Context, img *imaging.Image) (string, error) {
	resp, err := a.exec.Execute(ctx, a.recognizeRequest(img))
	if err != nil {
		return "", err
	}
	return a.parseResponse(resp)
}

// CreateFaceID returns the existing subject id when the face is already
// enrolled, and enrolls it under a fresh random subject id otherwise.
func (a *Adapter) CreateFaceID(ctx context.Context, img *imaging.Image) (string, error) {
	faceID, err := a.FaceID(ctx, img)
	if err != nil || faceID != "" {
		return faceID, err
	}

	resp, err := a.exec.Execute(ctx, a.enrollRequest(img))
	if err != nil {
		return "", err
	}
	return a.parseResponse(resp)
}

func (a *Adapter) recognizeRequest(img *imaging.Image) *transport.Request {
	body, _ := json.Marshal(map[string]string{
		"image":        img.Base64(),
		"gallery_name": a.cfg.GalleryName,
	})

	return &transport.Request{
		Method: http.MethodPost,
		URL:    a.baseURL + "/recognize",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"app_id":       a.cfg.ApplicationID,
			"app_key":      a.cfg.ApplicationKey,
		},
		Body: body,
	}
}

func (a *Adapter) enrollRequest(img *imaging.Image) *transport.Request {
	// The subject id is minted by the caller, not the provider.
	body, _ := json.Marshal(map[string]string{
		"image":        img.Base64(),
		"gallery_name": a.cfg.GalleryName,
		"subject_id":   uuid.NewString(),
	})

	return &transport.Request{
		Method: http.MethodPost,
		URL:    a.baseURL + "/enroll",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"app_id":       a.cfg.ApplicationID,
			"app_key":      a.cfg.ApplicationKey,
		},
		Body: body,
	}
}

// Recognize and enroll answers share one shape: an images list whose
// transaction carries the subject id, or an Errors list.
type apiResponse struct {
	Images []struct {
		Transaction struct {
			SubjectID string `json:"subject_id"`
		} `json:"transaction"`
	} `json:"images"`
	Errors []struct {
		ErrCode int    `json:"ErrCode"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

func (a *Adapter) parseResponse(resp *transport.Response) (string, error) {
	if len(resp.Body) == 0 {
		a.logger.Error("empty response", zap.String("service", a.ServiceName()))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}

	var data apiResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		a.logger.Error("response is not a json string", zap.String("service", a.ServiceName()))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}

	if err := a.checkResponseErrors(&data); err != nil {
		return "", err
	}

	if len(data.Images) == 0 {
		a.logger.Error("unexpected empty images response from Kairos",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}
	if len(data.Images) > 1 {
		return "", apperrors.New(apperrors.KindManyFacesFound)
	}

	return data.Images[0].Transaction.SubjectID, nil
}

func (a *Adapter) checkResponseErrors(data *apiResponse) error {
	if len(data.Errors) == 0 {
		return nil
	}

	code := data.Errors[0].ErrCode
	switch code {
	case 3003:
		// Invalid app_id or app_key.
		a.logger.Error("invalid app key or app id for Kairos", zap.Int("err_code", code))
		return apperrors.New(apperrors.KindInvalidConfig)
	case 5000:
		// Only JPG and PNG images are accepted.
		a.logger.Error("unsupported type of image", zap.Int("err_code", code))
		return apperrors.New(apperrors.KindInvalidImage)
	case 5002:
		a.logger.Error("no faces were found", zap.Int("err_code", code))
		return apperrors.New(apperrors.KindNoFacesFound)
	case 5004:
		a.logger.Error("gallery was not found", zap.Int("err_code", code))
		return apperrors.New(apperrors.KindInvalidConfig)
	case 5010:
		a.logger.Error("many faces were found", zap.Int("err_code", code))
		return apperrors.New(apperrors.KindManyFacesFound)
	default:
		a.logger.Error("unexpected error response from Kairos",
			zap.Int("err_code", code), zap.String("message", data.Errors[0].Message))
		return apperrors.New(apperrors.KindBadServiceResponse)
	}
}
