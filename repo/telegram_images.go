package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// telegramFileResponse represents the response from getFile
type telegramFileResponse struct {
	Ok     bool `json:"ok"`
	Result struct {
		FileID   string `json:"file_id"`
		FileSize int    `json:"file_size"`
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// ImageService fetches user-uploaded photos from Telegram's file API and
// prepares them for transmission to the analysis service.
type ImageService struct {
	BotToken    string
	BaseURL     string
	FileBaseURL string
	client      *http.Client
}

// NewImageService creates a new image service
func NewImageService(botToken string) *ImageService {
	return &ImageService{
		BotToken:    botToken,
		BaseURL:     "https://api.telegram.org/bot",
		FileBaseURL: "https://api.telegram.org/file/bot",
		client:      http.DefaultClient,
	}
}

// resolveFileURL converts a Telegram file ID to a downloadable URL using
// the getFile method.
func (s *ImageService) resolveFileURL(ctx context.Context, fileID string) (string, error) {
	getFileURL := fmt.Sprintf("%s%s/getFile?file_id=%s", s.BaseURL, s.BotToken, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getFileURL, nil)
	if err != nil {
		return "", fmt.Errorf("error building getFile request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error getting file path: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var fileResponse telegramFileResponse
	if err := json.Unmarshal(body, &fileResponse); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}

	if !fileResponse.Ok || fileResponse.Result.FilePath == "" {
		return "", fmt.Errorf("couldn't retrieve file path for file ID: %s", fileID)
	}

	return fmt.Sprintf("%s%s/%s", s.FileBaseURL, s.BotToken, fileResponse.Result.FilePath), nil
}

// FetchToFile downloads the photo behind fileID into dir under a unique
// name and returns the local path. The file is the session's transient
// invoice copy; nothing else is persisted.
func (s *ImageService) FetchToFile(ctx context.Context, fileID, dir string) (string, error) {
	fileURL, err := s.resolveFileURL(ctx, fileID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("error building download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}

	path := filepath.Join(dir, "invoice-"+uuid.NewString()+".jpg")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("error writing local file: %w", err)
	}

	return path, nil
}

// Encode reads a locally saved image and base64-encodes it for the
// analysis request.
func (s *ImageService) Encode(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error encoding image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
