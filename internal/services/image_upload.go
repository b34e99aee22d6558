package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageUploadResult 上传结果
type ImageUploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadImage 把封面图存到本地上传目录，文件名用 uuid 防止覆盖
func UploadImage(file multipart.File, header *multipart.FileHeader) (*ImageUploadResult, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		return nil, fmt.Errorf("unsupported image type: %q", ext)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./web/static/uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(uploadDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}

	return &ImageUploadResult{
		URL:      "/static/uploads/" + name,
		Filename: name,
	}, nil
}
