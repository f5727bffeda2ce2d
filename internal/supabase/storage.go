package supabase

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
	"image-studio-backend/internal/models"
)

// objectStore is the part of the storage-go client used here.
type objectStore interface {
	UploadFile(bucketID string, relativePath string, data io.Reader, fileOptions ...storage.FileOptions) (storage.FileUploadResponse, error)
	RemoveFile(bucketID string, paths []string) ([]storage.FileUploadResponse, error)
}

type StorageClient struct {
	client  objectStore
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)
	return newStorageClient(client, baseURL, bucket)
}

func newStorageClient(client objectStore, baseURL, bucket string) *StorageClient {
	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ResultPath is results/{kind}-{key}/{id}.{ext}. Characters that are not
// path-safe in the key (IPv6 colons) are replaced.
func ResultPath(ref models.IdentityRef, id uuid.UUID, contentType string) string {
	ext := mimetype.Lookup(contentType)
	suffix := ".bin"
	if ext != nil && ext.Extension() != "" {
		suffix = ext.Extension()
	}

	key := strings.NewReplacer(":", "_", "/", "_", "%", "_").Replace(ref.Key)
	return fmt.Sprintf("results/%s-%s/%s%s", ref.Kind, key, id.String(), suffix)
}

// UploadResult stores a transformed image and returns its storage path and
// public URL.
func (s *StorageClient) UploadResult(ref models.IdentityRef, data []byte, contentType string) (string, string, error) {
	storagePath := ResultPath(ref, uuid.New(), contentType)

	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload result: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteFile(storagePath string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{storagePath}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
