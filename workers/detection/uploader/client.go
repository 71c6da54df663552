package uploader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Submission is one container number paired with its ISO code.
type Submission struct {
	ContainerNumber string `json:"container_number"`
	ISOCode         string `json:"iso_code"`
}

// Outcome is the result of a single create request. ID is set only on success.
type Outcome struct {
	Submission Submission
	Status     Status
	StatusCode int
	ID         uint
	Err        error
}

type createResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client posts submissions to the create endpoint of the container API.
type Client struct {
	logger *zap.Logger
	url    string
	rest   *resty.Client
}

func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	rest := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{logger: logger, url: url, rest: rest}
}

// Create submits one record. 201 is success, 409 is a benign duplicate and
// anything else, including transport errors, is a failure for this record only.
func (c *Client) Create(ctx context.Context, s Submission) Outcome {
	requestID := uuid.New().String()
	outcome := Outcome{Submission: s}

	var created createResponse
	var apiErr errorResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetBody(s).
		SetResult(&created).
		SetError(&apiErr).
		Post(c.url)

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("container_number", s.ContainerNumber),
		zap.String("iso_code", s.ISOCode),
	}

	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		c.logger.Error("Upload failed", append(fields, zap.Error(err))...)
		return outcome
	}

	outcome.StatusCode = resp.StatusCode()
	fields = append(fields, zap.Int("status", outcome.StatusCode))

	switch outcome.StatusCode {
	case http.StatusCreated:
		outcome.Status = StatusCreated
		outcome.ID = created.ID
		c.logger.Info("Container uploaded", append(fields, zap.Uint("id", created.ID))...)
	case http.StatusConflict:
		outcome.Status = StatusDuplicate
		c.logger.Warn("Container already exists", fields...)
	default:
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("unexpected status %d: %s", outcome.StatusCode, apiErr.Error)
		c.logger.Error("Upload rejected", append(fields, zap.String("error", apiErr.Error))...)
	}
	return outcome
}
