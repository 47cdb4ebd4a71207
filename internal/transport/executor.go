// Package transport executes a single prepared HTTP request with a bounded
// timeout. It never retries, and it surfaces non-2xx responses as data so
// adapters can translate provider error payloads themselves; only transport
// and protocol failures become errors.
package transport

import (
	"bytes"
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/internal/observability"
)

// FormFile is one part of a multipart/form-data body.
type FormFile struct {
	Field    string
	FileName string
	Content  []byte
}

// Request is a prepared provider request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string

	// Body is the raw request body. Ignored when Files is set.
	Body []byte

	// Files switches the request to multipart/form-data.
	Files []FormFile
}

// Response is the raw provider answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// Executor sends prepared requests through a shared client with a fixed
// timeout. Timeouts are provider-specific, so each adapter owns an Executor.
type Executor struct {
	client *resty.Client
	logger *zap.Logger
}

// New returns an Executor whose every request is bounded by timeout.
func New(timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		client: resty.New().SetTimeout(timeout),
		logger: observability.OrNop(logger),
	}
}

// Execute sends the request and returns the raw response. Any network or
// protocol failure, including timeout, is reported as a transport error.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	r := e.client.R().SetContext(ctx)

	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	if len(req.Files) > 0 {
		for _, f := range req.Files {
			r.SetFileReader(f.Field, f.FileName, bytes.NewReader(f.Content))
		}
	} else if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		e.logger.Error("failed to execute http request",
			zap.String("method", req.Method), zap.String("url", req.URL), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.KindTransportError, err)
	}

	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}
