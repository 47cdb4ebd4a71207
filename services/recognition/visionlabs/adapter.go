// Package visionlabs implements the VisionLabs (Luna) adapter. VisionLabs
// takes raw binary image uploads with an X-Auth-Token header; enrollment is
// a sequence of four dependent calls that create a descriptor, attach it to
// a list, create a person and link everything together.
package visionlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/atticlab/libface/config"
	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/imaging"
	"github.com/atticlab/libface/internal/observability"
	"github.com/atticlab/libface/internal/transport"
)

// ServiceID is the fixed VisionLabs adapter id, unique across all providers.
const ServiceID = 3

const (
	defaultBaseURL = "https://luna.faceis.ru/1"
	statusPath     = "/version"
	timeout        = 10 * time.Second

	// minSimilarity is the lowest candidate similarity accepted as a match.
	minSimilarity = 0.500
)

// Adapter implements recognition.Recognizer for VisionLabs.
type Adapter struct {
	cfg     config.VisionLabs
	baseURL string
	exec    *transport.Executor
	logger  *zap.Logger
}

// New validates the configuration and builds the adapter.
func New(cfg config.VisionLabs, logger *zap.Logger) (*Adapter, error) {
	log := observability.OrNop(logger)
	log.Debug("enabling service",
		zap.String("service", "VisionLabs"),
		zap.String("descriptor_list", cfg.DescriptorListID),
		zap.String("person_list", cfg.PersonListID))

	if err := cfg.Validate(); err != nil {
		log.Error("failed to validate config",
			zap.String("service", "VisionLabs"), zap.Error(err))
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
func (a *Adapter) ServiceName() string { return "VisionLabs" }

// Limit returns the response-count alert threshold.
func (a *Adapter) Limit() int { return a.cfg.Limit }

// CheckAvailability probes the version endpoint, which answers 200 without
// authentication when the service is up.
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
	return resp.StatusCode == http.StatusOK
}

// FaceID searches the descriptor list for a match. The best candidate wins
// when its similarity reaches the threshold; empty means no match.
func (a *Adapter) FaceID(ctx context.Context, img *imaging.Image) (string, error) {
	url := fmt.Sprintf("%s/matching/search?list_id=%s", a.baseURL, a.cfg.DescriptorListID)

	resp, err := a.exec.Execute(ctx, a.uploadRequest(http.MethodPost, url, img))
	if err != nil {
		return "", err
	}

	data, err := a.decode(resp)
	if err != nil {
		return "", err
	}

	if len(data.Candidates) == 0 {
		return "", nil
	}
	sort.Slice(data.Candidates, func(i, j int) bool {
		return data.Candidates[i].Similarity > data.Candidates[j].Similarity
	})
	if data.Candidates[0].Similarity < minSimilarity {
		return "", nil
	}
	return data.Candidates[0].PersonID, nil
}

// CreateFaceID returns an existing match or runs the enrollment sequence:
// create descriptor, attach it to the descriptor list, create a person,
// attach the descriptor to the person, attach the person to the person list.
// The person id minted mid-sequence is threaded through as a local value, so
// one adapter instance is safe for concurrent create calls.
func (a *Adapter) CreateFaceID(ctx context.Context, img *imaging.Image) (string, error) {
	faceID, err := a.FaceID(ctx, img)
	if err != nil || faceID != "" {
		return faceID, err
	}
	return a.enroll(ctx, img)
}

func (a *Adapter) enroll(ctx context.Context, img *imaging.Image) (string, error) {
	descriptorID, err := a.createDescriptor(ctx, img)
	if err != nil {
		return "", err
	}

	attachDescriptorToList := fmt.Sprintf(
		"%s/storage/descriptors/%s/linked_lists?list_id=%s&do=attach",
		a.baseURL, descriptorID, a.cfg.DescriptorListID)
	if err := a.patch(ctx, attachDescriptorToList); err != nil {
		return "", err
	}

	personID, err := a.createPerson(ctx)
	if err != nil {
		return "", err
	}

	attachDescriptorToPerson := fmt.Sprintf(
		"%s/storage/persons/%s/linked_descriptors?descriptor_id=%s&do=attach",
		a.baseURL, personID, descriptorID)
	if err := a.patch(ctx, attachDescriptorToPerson); err != nil {
		return "", err
	}

	attachPersonToList := fmt.Sprintf(
		"%s/storage/persons/%s/linked_lists?list_id=%s&do=attach",
		a.baseURL, personID, a.cfg.PersonListID)
	if err := a.patch(ctx, attachPersonToList); err != nil {
		return "", err
	}

	return personID, nil
}

func (a *Adapter) createDescriptor(ctx context.Context, img *imaging.Image) (string, error) {
	resp, err := a.exec.Execute(ctx, a.uploadRequest(http.MethodPost, a.baseURL+"/storage/descriptors", img))
	if err != nil {
		return "", err
	}

	data, err := a.decode(resp)
	if err != nil {
		return "", err
	}
	if len(data.Faces) == 0 || data.Faces[0].ID == "" {
		a.logger.Error("no descriptor id in VisionLabs response",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}
	return data.Faces[0].ID, nil
}

func (a *Adapter) createPerson(ctx context.Context) (string, error) {
	resp, err := a.exec.Execute(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/storage/persons",
		Headers: map[string]string{"X-Auth-Token": a.cfg.Token},
	})
	if err != nil {
		return "", err
	}

	data, err := a.decode(resp)
	if err != nil {
		return "", err
	}
	if data.PersonID == "" {
		a.logger.Error("no person id in VisionLabs response",
			zap.ByteString("body", resp.Body))
		return "", apperrors.New(apperrors.KindBadServiceResponse)
	}
	return data.PersonID, nil
}

func (a *Adapter) patch(ctx context.Context, url string) error {
	resp, err := a.exec.Execute(ctx, &transport.Request{
		Method:  http.MethodPatch,
		URL:     url,
		Headers: map[string]string{"X-Auth-Token": a.cfg.Token},
	})
	if err != nil {
		return err
	}

	// Attach calls answer with an empty body on success.
	if len(resp.Body) == 0 {
		return nil
	}
	var data apiResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil
	}
	return a.checkResponseErrors(&data)
}

func (a *Adapter) uploadRequest(method, url string, img *imaging.Image) *transport.Request {
	bin := img.Bytes()
	return &transport.Request{
		Method: method,
		URL:    url,
		Headers: map[string]string{
			"X-Auth-Token": a.cfg.Token,
			"Content-Type": mimetype.Detect(bin).String(),
		},
		Body: bin,
	}
}

// apiResponse covers the fields of every VisionLabs answer this adapter
// reads: search candidates, created descriptors, created persons and the
// error envelope.
type apiResponse struct {
	Candidates []struct {
		PersonID   string  `json:"person_id"`
		Similarity float64 `json:"similarity"`
	} `json:"candidates"`
	Faces []struct {
		ID string `json:"id"`
	} `json:"faces"`
	PersonID  string `json:"person_id"`
	ErrorCode int    `json:"error_code"`
	Detail    string `json:"detail"`
}

func (a *Adapter) decode(resp *transport.Response) (*apiResponse, error) {
	if len(resp.Body) == 0 {
		a.logger.Error("empty response", zap.String("service", a.ServiceName()))
		return nil, apperrors.New(apperrors.KindBadServiceResponse)
	}

	var data apiResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		a.logger.Error("response is not a json string", zap.String("service", a.ServiceName()))
		return nil, apperrors.New(apperrors.KindBadServiceResponse)
	}

	if err := a.checkResponseErrors(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (a *Adapter) checkResponseErrors(data *apiResponse) error {
	if data.ErrorCode == 0 {
		return nil
	}

	code := data.ErrorCode
	switch code {
	case 11006:
		a.logger.Error("descriptor error in VisionLabs response", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindInvalidConfig)
	case 3002:
		a.logger.Error("incorrect image size", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindInvalidImage)
	case 10012:
		a.logger.Error("token not found", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindInvalidConfig)
	case 10003, 10004:
		a.logger.Error("person not found, check lists configuration", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindBadServiceResponse)
	case 4003:
		a.logger.Error("picture does not have faces", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindNoFacesFound)
	case 12015:
		a.logger.Error("many faces detected", zap.Int("error_code", code))
		return apperrors.New(apperrors.KindManyFacesFound)
	default:
		a.logger.Error("unexpected error response from VisionLabs",
			zap.Int("error_code", code), zap.String("detail", data.Detail))
		return apperrors.New(apperrors.KindBadServiceResponse)
	}
}
