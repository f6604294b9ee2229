// Package storage abstracts the blob store behind the engine's one file
// dependency, the optional steam_apps_pretty.json lookup cache, read
// streamingly. Kept general enough to grow a remote backend later.
package storage

import (
	"context"
	"time"
)

// StorageType enumerates backend kinds.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Metadata is optional side information stored alongside a blob.
type Metadata struct {
	ContentType string            `json:"contentType,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// FileInfo describes a stored blob without its content.
type FileInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"contentType,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Storage is the blob-store contract, backend-agnostic.
type Storage interface {
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetInfo(ctx context.Context, key string) (*FileInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	GetChecksum(ctx context.Context, key string) (string, error)
}
