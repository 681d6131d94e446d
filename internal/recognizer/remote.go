package recognizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Remote calls an external face recognition service over HTTP. With
// Skip set, every call returns a canned result so the rest of the
// system can run without the service (dev and CI).
type Remote struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewRemote creates a client with a generous timeout; face processing
// can take a while.
func NewRemote(baseURL string, skip bool) *Remote {
	return &Remote{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enroll sends the sample for gallery enrollment and returns the
// derived signature.
func (r *Remote) Enroll(ctx context.Context, personID string, sample []byte) (Signature, error) {
	if r.Skip {
		return Signature{0.1, 0.2, 0.3}, nil
	}
	if personID == "" {
		return nil, fmt.Errorf("person id required")
	}
	var out struct {
		Signature Signature `json:"signature"`
	}
	err := r.post(ctx, "/enroll", map[string]string{
		"person_id": personID,
		"sample":    base64.StdEncoding.EncodeToString(sample),
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Signature) == 0 {
		return nil, fmt.Errorf("no face detected in sample")
	}
	return out.Signature, nil
}

// Describe derives a probe signature without enrolling.
func (r *Remote) Describe(ctx context.Context, sample []byte) (Signature, error) {
	if r.Skip {
		return Signature{0.1, 0.2, 0.3}, nil
	}
	var out struct {
		Signature Signature `json:"signature"`
	}
	err := r.post(ctx, "/describe", map[string]string{
		"sample": base64.StdEncoding.EncodeToString(sample),
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Signature) == 0 {
		return nil, fmt.Errorf("no face detected in sample")
	}
	return out.Signature, nil
}

// Match identifies the probe against the supplied candidates.
func (r *Remote) Match(ctx context.Context, probe Signature, candidates []Candidate) (Match, error) {
	if r.Skip {
		if len(candidates) == 0 {
			return Match{}, ErrNoMatch
		}
		return Match{PersonID: candidates[0].PersonID, Confidence: 0.92}, nil
	}
	gallery := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		gallery = append(gallery, map[string]any{"person_id": c.PersonID, "signature": c.Signature})
	}
	var out struct {
		PersonID   string  `json:"person_id"`
		Confidence float64 `json:"confidence"`
		Matched    bool    `json:"matched"`
	}
	err := r.post(ctx, "/identify", map[string]any{
		"probe":      probe,
		"candidates": gallery,
	}, &out)
	if err != nil {
		return Match{}, err
	}
	if !out.Matched {
		return Match{}, ErrNoMatch
	}
	return Match{PersonID: out.PersonID, Confidence: out.Confidence}, nil
}

// MatchAll identifies a batch of probes in one synchronous call.
func (r *Remote) MatchAll(ctx context.Context, probes []Signature, candidates []Candidate) ([]Match, error) {
	out := make([]Match, len(probes))
	for i, probe := range probes {
		m, err := r.Match(ctx, probe, candidates)
		if err != nil {
			if err == ErrNoMatch {
				continue
			}
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Health checks service availability.
func (r *Remote) Health(ctx context.Context) error {
	if r.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (r *Remote) post(ctx context.Context, path string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
