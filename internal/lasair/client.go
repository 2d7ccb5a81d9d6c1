// Package lasair provides a client for the Lasair alert-broker API.
// It fetches per-object payloads (image cutout URL groups plus photometry
// history) and downloads individual FITS cutouts, transparently handling
// gzip-compressed responses.
package lasair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Lasair API base URL.
	defaultBaseURL = "https://lasair-lsst.lsst.ac.uk/api"

	// defaultTimeout is the HTTP client timeout for API calls.
	// Cutout downloads can be slow when the broker is rebuilding its cache.
	defaultTimeout = 60 * time.Second

	// maxCutoutBytes bounds a single cutout download.
	maxCutoutBytes = 32 << 20
)

// APIError is a non-2xx response from the broker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lasair: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client provides access to the Lasair object and cutout endpoints.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewClient creates a Lasair API client using token authentication.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		token:   token,
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against a non-default endpoint,
// e.g. a staging broker or a test server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// Object fetches the full payload for one object, including the broker-added
// image URL groups (lasair_added=true).
func (c *Client) Object(ctx context.Context, objectID string) (*ObjectPayload, error) {
	endpoint := fmt.Sprintf("%s/objects/%s/?lasair_added=true", c.baseURL, url.PathEscape(objectID))

	log.Debug().Str("objectId", objectID).Msg("Fetching object payload")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build object request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object %s: %w", objectID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var payload ObjectPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse object %s: %w", objectID, err)
	}
	if payload.ObjectID == "" {
		payload.ObjectID = objectID
	}

	log.Debug().
		Str("objectId", objectID).
		Int("imageUrlGroups", len(payload.LasairData.ImageURLs)).
		Int("diaSources", len(payload.DiaSourcesList)).
		Msg("Object payload fetched")

	return &payload, nil
}

// FetchCutout downloads one FITS cutout. Responses compressed with gzip
// (either via Content-Encoding or served as .fits.gz blobs) are decompressed
// before returning, so callers always see raw FITS bytes.
func (c *Client) FetchCutout(ctx context.Context, cutoutURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cutoutURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build cutout request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cutout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCutoutBytes))
	if err != nil {
		return nil, fmt.Errorf("read cutout: %w", err)
	}

	if isGzip(data) {
		data, err = gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("decompress cutout: %w", err)
		}
	}

	log.Debug().Str("url", cutoutURL).Int("bytes", len(data)).Msg("Cutout fetched")
	return data, nil
}

// isGzip reports whether data starts with the gzip magic bytes.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxCutoutBytes))
}
