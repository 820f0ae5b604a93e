package storage

import (
	"context"

	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/errs"
)

var gcsSchemeAliases = map[string][]string{
	"gs": {"gs"},
}

// GCSConfig is the decoded form of a "type":"gcs" storage profile JSON.
type GCSConfig struct {
	Bucket    string `json:"bucket"`
	KeyPrefix string `json:"key-prefix,omitempty"`
}

// GCSProfile implements storage.Profile for Google Cloud Storage.
type GCSProfile struct {
	cfg GCSConfig
}

// NewGCSProfile builds a GCSProfile from its decoded configuration.
func NewGCSProfile(cfg GCSConfig) *GCSProfile {
	return &GCSProfile{cfg: cfg}
}

func (p *GCSProfile) BaseLocation() string {
	loc := "gs://" + p.cfg.Bucket
	if p.cfg.KeyPrefix != "" {
		loc = storage.JoinLocation(loc, p.cfg.KeyPrefix)
	}

	return loc
}

func (p *GCSProfile) DefaultNamespaceLocation(namespaceID string) string {
	return storage.JoinLocation(p.BaseLocation(), namespaceID)
}

func (p *GCSProfile) DefaultTabularLocation(namespaceLocation, tabularID string) string {
	return storage.JoinLocation(namespaceLocation, tabularID)
}

func (p *GCSProfile) DefaultMetadataLocation(tabularLocation, codec, metadataID string, sequence int) string {
	return storage.JoinLocation(tabularLocation, "metadata/"+storage.MetadataFileName(sequence, metadataID, codecExtension(codec)))
}

func (p *GCSProfile) IsAllowedLocation(loc string) bool {
	return storage.SublocationOf(loc, p.BaseLocation(), gcsSchemeAliases)
}

func (p *GCSProfile) GenerateTableConfig(ctx context.Context, perms storage.Permissions, tabularLocation string) (storage.ClientConfig, *storage.Credential, error) {
	return storage.ClientConfig{"gcs.bucket": p.cfg.Bucket}, nil, nil
}

func (p *GCSProfile) ValidateAccess(ctx context.Context, loc string) error {
	target := loc
	if target == "" {
		target = p.BaseLocation()
	}

	if target != p.BaseLocation() && !p.IsAllowedLocation(target) {
		return errs.NewBadRequest("storage", "location outside warehouse base_location", nil)
	}

	return nil
}
