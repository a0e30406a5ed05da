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
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrStorageUnavailable = errors.New("photo storage is not configured")
	ErrNotAnImage         = errors.New("uploaded file is not an image")
	ErrPhotoTooLarge      = errors.New("uploaded photo exceeds the size limit")
)

// MaxPhotoBytes caps a single upload. Phone camera originals are resized
// client-side before hitting this.
const MaxPhotoBytes = 10 << 20

// Folders inside the photos bucket, one per kind of upload.
const (
	FolderAvatars  = "avatars"
	FolderPets     = "pets"
	FolderReports  = "reports"
	FolderMessages = "messages"
)

// PhotoStorage stores user-uploaded images and returns public URLs for them.
type PhotoStorage interface {
	UploadPhoto(ctx context.Context, file multipart.File, folder string) (string, error)
	DeletePhoto(ctx context.Context, photoURL string) error
	SignedPhotoURL(ctx context.Context, photoURL string) (string, error)
}

// SupabaseStorage talks to a Supabase storage bucket over its REST surface.
type SupabaseStorage struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseStorage(baseURL, bucket, serviceKey string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
	}
}

func (s *SupabaseStorage) configured() bool {
	return s.baseURL != "" && s.bucket != "" && s.serviceKey != ""
}

// UploadPhoto stores an image under a random name in the given folder and
// returns its public URL. The object name never derives from the client
// filename.
func (s *SupabaseStorage) UploadPhoto(ctx context.Context, file multipart.File, folder string) (string, error) {
	if !s.configured() {
		return "", ErrStorageUnavailable
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(content) > MaxPhotoBytes {
		return "", ErrPhotoTooLarge
	}

	contentType := http.DetectContentType(content)
	ext, ok := imageExtension(contentType)
	if !ok {
		return "", ErrNotAnImage
	}

	objectPath := path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("upload photo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

func (s *SupabaseStorage) DeletePhoto(ctx context.Context, photoURL string) error {
	if !s.configured() {
		return ErrStorageUnavailable
	}
	objectPath, err := s.objectPathFromURL(photoURL)
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("delete photo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// SignedPhotoURL mints a short-lived URL for an object in the bucket. Used
// when the bucket is private; public buckets keep serving the plain URL.
func (s *SupabaseStorage) SignedPhotoURL(ctx context.Context, photoURL string) (string, error) {
	if !s.configured() {
		return "", ErrStorageUnavailable
	}
	objectPath, err := s.objectPathFromURL(photoURL)
	if err != nil {
		return "", err
	}

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, objectPath)
	body, err := json.Marshal(map[string]int{"expiresIn": 3600})
	if err != nil {
		return "", fmt.Errorf("marshal signed url payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build signed url request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("get signed url: status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}

	var response struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode signed url response: %w", err)
	}
	if response.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}

	return fmt.Sprintf("%s/storage/v1%s", s.baseURL, response.SignedURL), nil
}

func (s *SupabaseStorage) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

func (s *SupabaseStorage) objectPathFromURL(photoURL string) (string, error) {
	parsed, err := url.Parse(photoURL)
	if err != nil {
		return "", fmt.Errorf("parse photo url: %w", err)
	}

	publicPrefix := "/storage/v1/object/public/" + s.bucket + "/"
	objectPrefix := "/storage/v1/object/" + s.bucket + "/"

	switch {
	case strings.HasPrefix(parsed.Path, publicPrefix):
		return strings.TrimPrefix(parsed.Path, publicPrefix), nil
	case strings.HasPrefix(parsed.Path, objectPrefix):
		return strings.TrimPrefix(parsed.Path, objectPrefix), nil
	default:
		return "", fmt.Errorf("photo url does not belong to configured bucket")
	}
}

func imageExtension(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/gif":
		return ".gif", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}
