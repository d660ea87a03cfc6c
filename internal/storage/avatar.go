package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/projecthub/projecthub/pkg/checksum"
)

var (
	// ErrUnsupportedImage is returned for uploads that are not jpeg, png, gif or webp images.
	ErrUnsupportedImage = errors.New("only image files are allowed (jpeg, jpg, png, gif, webp)")
	// ErrEmptyUpload is returned for zero-byte uploads.
	ErrEmptyUpload = errors.New("no file uploaded")
)

// avatarTypes maps accepted file extensions to the content type the bytes must sniff as.
var avatarTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// AvatarType checks the file name and the sniffed content of an avatar upload
// and returns the normalized extension and content type.
func AvatarType(filename string, data []byte) (ext, contentType string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyUpload
	}
	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	want, ok := avatarTypes[ext]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	if got := http.DetectContentType(data); got != want {
		return "", "", ErrUnsupportedImage
	}
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext, want, nil
}

// AvatarKey returns the content-addressed object path of an avatar.
func AvatarKey(userID, sum, ext string) string {
	return path.Join("avatars", userID, sum+"."+ext)
}

// PutAvatar validates and stores an avatar for userID. Identical uploads map
// to the same key and are not written twice.
func PutAvatar(ctx context.Context, s Storage, userID, filename string, data []byte) (*UploadResult, error) {
	ext, contentType, err := AvatarType(filename, data)
	if err != nil {
		return nil, err
	}
	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	key := AvatarKey(userID, sum, ext)

	exists, err := s.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check avatar: %w", err)
	}
	if exists {
		return &UploadResult{Path: key, Size: int64(len(data)), Checksum: sum, URL: s.PublicURL(key)}, nil
	}

	res, err := s.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}
	if res.URL == "" {
		res.URL = s.PublicURL(key)
	}
	return res, nil
}

// KeyFromURL recovers the object path of userID's avatar from its public
// URL so a replaced avatar can be deleted. It returns "" when url does not
// point at one of userID's avatars.
func KeyFromURL(userID, url string) string {
	i := strings.LastIndex(url, "/avatars/")
	if i < 0 {
		return ""
	}
	key := url[i+1:]
	if !strings.HasPrefix(key, "avatars/"+userID+"/") || strings.Contains(key, "..") {
		return ""
	}
	return key
}

// JoinURL joins a public base URL and an object path.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
