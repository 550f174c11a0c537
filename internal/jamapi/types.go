package jamapi

import (
	"errors"
	"fmt"
)

// ErrDownloadFailed is returned when the authority answers without success.
var ErrDownloadFailed = errors.New("download was not successful")

// DownloadResult is the authority's answer to an ingestion request.
type DownloadResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
}

type downloadRequest struct {
	URL string `json:"url"`
}

type errorDetail struct {
	Detail string `json:"detail"`
}

// APIError is a non-success HTTP response.
type APIError struct {
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}
