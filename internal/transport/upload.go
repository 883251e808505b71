package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-resty/resty/v2"
)

// UploadRef describes an out-of-band payload. The structured response carries
// this descriptor instead of the bytes; callers fetch it themselves.
type UploadRef struct {
	URL         string `json:"url"`
	PayloadKind string `json:"payload_kind"`
	Size        int    `json:"size"`
	Digest      string `json:"digest"`
}

// Map renders the descriptor for an envelope payload.
func (r UploadRef) Map() map[string]interface{} {
	return map[string]interface{}{
		"url":          r.URL,
		"payload_kind": r.PayloadKind,
		"size":         r.Size,
		"digest":       r.Digest,
	}
}

// Uploader is the content-upload fallback used when the binary channel cannot
// serve a bulk payload.
type Uploader struct {
	http     *resty.Client
	endpoint string
	breaker  *Breaker
}

// NewUploader creates an uploader posting to the given endpoint.
func NewUploader(endpoint string) *Uploader {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Uploader{
		http:     client,
		endpoint: endpoint,
		breaker:  NewBreaker(3, 30*time.Second),
	}
}

// Upload stores the payload out of band and returns its reference descriptor.
func (u *Uploader) Upload(ctx context.Context, correlationID, payloadKind string, data []byte) (UploadRef, error) {
	if err := u.breaker.Allow(); err != nil {
		return UploadRef{}, err
	}

	digest := fmt.Sprintf("%016x", xxhash.Sum64(data))
	resp, err := u.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("X-Correlation-Id", correlationID).
		SetHeader("X-Payload-Kind", payloadKind).
		SetHeader("X-Payload-Digest", digest).
		SetBody(data).
		Post(u.endpoint)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("upload: endpoint returned %d", resp.StatusCode())
	}
	u.breaker.Record(err)
	if err != nil {
		return UploadRef{}, err
	}

	ref := UploadRef{
		URL:         fmt.Sprintf("%s/%s", u.endpoint, digest),
		PayloadKind: payloadKind,
		Size:        len(data),
		Digest:      digest,
	}
	if loc := resp.Header().Get("Location"); loc != "" {
		ref.URL = loc
	}
	return ref, nil
}
