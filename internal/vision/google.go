package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	werrors "sjsage522/consoledealworker/pkg/errors"
)

// DefaultEndpoint is the Google Cloud Vision annotate endpoint
const DefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

// GoogleVision classifies images with Cloud Vision label detection and object
// localization.
type GoogleVision struct {
	apiKey   string
	endpoint string
	client   *http.Client
	scorer   *Scorer
}

// NewGoogleVision creates a Cloud Vision classifier. An empty endpoint uses
// DefaultEndpoint.
func NewGoogleVision(apiKey, endpoint string, scorer *Scorer) *GoogleVision {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GoogleVision{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		scorer:   scorer,
	}
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageSource `json:"image"`
	Features []feature   `json:"features"`
}

type imageSource struct {
	Source struct {
		ImageURI string `json:"imageUri"`
	} `json:"source"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string `json:"description"`
		} `json:"labelAnnotations"`
		LocalizedObjectAnnotations []struct {
			Name string `json:"name"`
		} `json:"localizedObjectAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Classify sends the image reference to Cloud Vision and scores the labels
func (g *GoogleVision) Classify(ctx context.Context, imageRef string) (Judgment, error) {
	if g.apiKey == "" {
		return Judgment{}, ErrNoCredential
	}

	var img imageSource
	img.Source.ImageURI = imageRef
	body, err := json.Marshal(annotateRequest{Requests: []imageRequest{{
		Image: img,
		Features: []feature{
			{Type: "LABEL_DETECTION", MaxResults: 10},
			{Type: "OBJECT_LOCALIZATION", MaxResults: 5},
		},
	}}})
	if err != nil {
		return Judgment{}, fmt.Errorf("encode annotate request: %w", err)
	}

	endpoint := g.endpoint + "?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Judgment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Judgment{}, werrors.NewClassifier("google_vision", "annotate request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Judgment{}, werrors.NewClassifier("google_vision", fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Judgment{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed annotateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Judgment{}, werrors.NewParsing("google_vision", "decode annotate response", err)
	}

	var detected []string
	if len(parsed.Responses) > 0 {
		r := parsed.Responses[0]
		if r.Error != nil {
			return Judgment{}, werrors.NewClassifier("google_vision", r.Error.Message, nil)
		}
		for _, l := range r.LabelAnnotations {
			detected = append(detected, l.Description)
		}
		for _, o := range r.LocalizedObjectAnnotations {
			detected = append(detected, o.Name)
		}
	}

	return g.scorer.Score(detected), nil
}
