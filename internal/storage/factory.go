package storage

import (
	"strings"

	"github.com/wyatt/creatorscout/internal/config"
)

// NewArchive creates the snapshot archive from configuration. Returns
// (nil, nil) when archiving is disabled; callers treat a nil archive as
// "do not archive".
// Parameters:
//   - cfg: archive configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized storage client, or nil when disabled.
//   - error: non-nil if the storage client cannot be created.
func NewArchive(cfg *config.ArchiveConfig) (ObjectStorage, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	return NewS3Storage(&S3Config{
		Type:      detectStorageType(cfg.Endpoint),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	})
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
