// Package panoptes provides a client for the Zooniverse Panoptes API's
// subject endpoints. Saving a subject is a two-step exchange: create the
// subject declaring one MIME type per media location, then PUT each payload
// to the signed upload URL the API returns. MIME types are always declared
// explicitly; the server is never asked to sniff payloads.
package panoptes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skysurvey-tools/subjectgen/internal/render"
)

const (
	// defaultBaseURL is the Panoptes API base URL.
	defaultBaseURL = "https://www.zooniverse.org/api"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	apiAccept      = "application/vnd.api+json; version=1"
	apiContentType = "application/json"
)

// APIError is a non-2xx response from the Panoptes API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panoptes: HTTP %d: %s", e.StatusCode, e.Message)
}

// Subject is one annotatable unit: ordered media locations plus metadata.
type Subject struct {
	ProjectID string
	Locations []render.Media
	Metadata  map[string]string
}

// Client provides subject creation and media upload against the Panoptes API.
type Client struct {
	httpClient *http.Client
	authToken  string
	baseURL    string
}

// NewClient creates a Panoptes API client using a bearer token obtained from
// the platform's OAuth flow.
func NewClient(authToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		authToken: authToken,
		baseURL:   defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against a non-default endpoint,
// e.g. a staging deployment or a test server.
func NewClientWithBaseURL(authToken, baseURL string) *Client {
	c := NewClient(authToken)
	c.baseURL = baseURL
	return c
}

// --- API request/response types ---

type subjectLinks struct {
	Project string `json:"project"`
}

type subjectAttributes struct {
	Locations []string          `json:"locations"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Links     subjectLinks      `json:"links"`
}

type createSubjectRequest struct {
	Subjects subjectAttributes `json:"subjects"`
}

type createdSubject struct {
	ID string `json:"id"`
	// Locations pairs each declared MIME type with its signed upload URL,
	// in the declared order.
	Locations []map[string]string `json:"locations"`
}

type createSubjectResponse struct {
	Subjects []createdSubject `json:"subjects"`
}

// SaveSubject creates the subject and uploads every media location.
// The returned ID is the platform's subject identifier.
func (c *Client) SaveSubject(ctx context.Context, subj Subject) (string, error) {
	created, err := c.createSubject(ctx, subj)
	if err != nil {
		return "", err
	}

	if len(created.Locations) != len(subj.Locations) {
		return "", fmt.Errorf("panoptes: subject %s: expected %d upload locations, got %d",
			created.ID, len(subj.Locations), len(created.Locations))
	}

	for i, media := range subj.Locations {
		uploadURL, ok := created.Locations[i][media.MIMEType]
		if !ok {
			return "", fmt.Errorf("panoptes: subject %s: no upload URL for location %d (%s)",
				created.ID, i, media.MIMEType)
		}
		if err := c.uploadLocation(ctx, uploadURL, media); err != nil {
			return "", fmt.Errorf("upload location %d for subject %s: %w", i, created.ID, err)
		}
	}

	log.Info().
		Str("subjectId", created.ID).
		Int("locations", len(subj.Locations)).
		Msg("Subject saved")

	return created.ID, nil
}

// createSubject declares the subject's locations (as MIME types) and metadata.
func (c *Client) createSubject(ctx context.Context, subj Subject) (*createdSubject, error) {
	mimeTypes := make([]string, len(subj.Locations))
	for i, media := range subj.Locations {
		mimeTypes[i] = media.MIMEType
	}

	body, err := json.Marshal(createSubjectRequest{
		Subjects: subjectAttributes{
			Locations: mimeTypes,
			Metadata:  subj.Metadata,
			Links:     subjectLinks{Project: subj.ProjectID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal subject: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/subjects", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Accept", apiAccept)
	req.Header.Set("Content-Type", apiContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read create response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed createSubjectResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}
	if len(parsed.Subjects) == 0 {
		return nil, fmt.Errorf("panoptes: create response contained no subjects")
	}
	return &parsed.Subjects[0], nil
}

// uploadLocation PUTs one payload to its signed URL.
func (c *Client) uploadLocation(ctx context.Context, uploadURL string, media render.Media) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(media.Data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", media.MIMEType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
