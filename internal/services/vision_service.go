package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

var ErrVisionUnavailable = errors.New("image analysis is not configured")

// ImageLabel is one detected feature with the analyzer's confidence.
type ImageLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type ImageAnalysis struct {
	Labels  []ImageLabel `json:"labels"`
	Caption string       `json:"caption"`
}

// LabelNames flattens the analysis to the lowercase label strings stored on
// a report and used for match scoring.
func (a *ImageAnalysis) LabelNames() []string {
	names := make([]string, 0, len(a.Labels))
	for _, label := range a.Labels {
		name := strings.ToLower(strings.TrimSpace(label.Label))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// VisionService forwards pet photos to the image-analysis backend. The
// backend is optional; without a configured URL every call returns
// ErrVisionUnavailable and reports simply go unlabeled.
type VisionService struct {
	baseURL    string
	httpClient *http.Client
}

func NewVisionService(baseURL string) *VisionService {
	return &VisionService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

func (s *VisionService) AnalyzeImage(ctx context.Context, file multipart.File, filename string) (*ImageAnalysis, error) {
	if s.baseURL == "" {
		return nil, ErrVisionUnavailable
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze-image", &body)
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("analyze image: status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	var analysis ImageAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &analysis, nil
}
