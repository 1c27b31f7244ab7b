// Package api talks to the results server that collects race recordings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skidline/racecore/pkg/core"
)

var (
	// ErrInvalidMetadata is returned when a recording does not describe a
	// finished race.
	ErrInvalidMetadata = errors.New("invalid race metadata")
	// ErrNotRecording is returned for files that are not JSON race exports.
	ErrNotRecording = errors.New("not a race recording")
)

// APIKeyHeader carries the server secret on every request.
const APIKeyHeader = "X-Api-Key"

// Client handles communication with the results server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Receipt is the server's answer to an accepted recording.
type Receipt struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// raceForm is the "race" form field of an upload.
type raceForm struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Track     string  `json:"track"`
	Tag       string  `json:"tag,omitempty"`
	Duration  float64 `json:"durationSeconds"`
	Vehicles  int     `json:"vehicles"`
	Winner    string  `json:"winner,omitempty"`
	Laps      int     `json:"laps"`
	BestLapMs int64   `json:"bestLapMs,omitempty"`
}

// Validate reports whether meta describes a race the server will accept.
func Validate(meta core.UploadMetadata) error {
	switch {
	case meta.RaceUUID == "":
		return fmt.Errorf("%w: missing race uuid", ErrInvalidMetadata)
	case meta.TrackName == "":
		return fmt.Errorf("%w: missing track name", ErrInvalidMetadata)
	case meta.Vehicles <= 0:
		return fmt.Errorf("%w: no vehicles", ErrInvalidMetadata)
	case !(meta.RaceDuration > 0) || math.IsInf(meta.RaceDuration, 0):
		return fmt.Errorf("%w: duration %v", ErrInvalidMetadata, meta.RaceDuration)
	case meta.Laps < 0 || meta.BestLapMs < 0:
		return fmt.Errorf("%w: negative lap result", ErrInvalidMetadata)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}

// Healthcheck checks if the results server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create healthcheck request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload streams a race export and its metadata to the results server.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) (Receipt, error) {
	name := filepath.Base(filePath)
	if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".json.gz") {
		return Receipt{}, fmt.Errorf("%w: %s", ErrNotRecording, name)
	}
	if err := Validate(meta); err != nil {
		return Receipt{}, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(form, name, file, meta))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/races", pr)
	if err != nil {
		pr.Close()
		return Receipt{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return Receipt{}, fmt.Errorf("upload of race %s returned status %d: %s", meta.RaceUUID, resp.StatusCode, msg)
	}

	var receipt Receipt
	if len(body) > 0 {
		if err := json.Unmarshal(body, &receipt); err != nil {
			return Receipt{}, fmt.Errorf("failed to decode upload receipt: %w", err)
		}
	}
	return receipt, nil
}

// writeUpload fills form with the race field and the recording, then closes it.
func writeUpload(form *multipart.Writer, name string, recording io.Reader, meta core.UploadMetadata) error {
	race, err := json.Marshal(raceForm{
		UUID:      meta.RaceUUID,
		Name:      meta.RaceName,
		Track:     meta.TrackName,
		Tag:       meta.Tag,
		Duration:  meta.RaceDuration,
		Vehicles:  meta.Vehicles,
		Winner:    meta.Winner,
		Laps:      meta.Laps,
		BestLapMs: meta.BestLapMs,
	})
	if err != nil {
		return err
	}
	if err := form.WriteField("race", string(race)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("recording", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, recording); err != nil {
		return fmt.Errorf("failed to copy recording: %w", err)
	}
	return form.Close()
}
