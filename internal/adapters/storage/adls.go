package storage

import (
	"context"

	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/errs"
)

// adlsSchemeAliases treats abfss and wasbs as interchangeable, the way
// s3/s3a/s3n are for the S3 variant.
var adlsSchemeAliases = map[string][]string{
	"abfss": {"abfss", "wasbs"},
}

// ADLSConfig is the decoded form of a "type":"adls" storage profile JSON.
type ADLSConfig struct {
	AccountName string `json:"account-name"`
	Filesystem  string `json:"filesystem"`
	KeyPrefix   string `json:"key-prefix,omitempty"`
}

// ADLSProfile implements storage.Profile for Azure Data Lake Storage Gen2.
type ADLSProfile struct {
	cfg ADLSConfig
}

// NewADLSProfile builds an ADLSProfile from its decoded configuration.
func NewADLSProfile(cfg ADLSConfig) *ADLSProfile {
	return &ADLSProfile{cfg: cfg}
}

func (p *ADLSProfile) BaseLocation() string {
	loc := "abfss://" + p.cfg.Filesystem + "@" + p.cfg.AccountName + ".dfs.core.windows.net"
	if p.cfg.KeyPrefix != "" {
		loc = storage.JoinLocation(loc, p.cfg.KeyPrefix)
	}

	return loc
}

func (p *ADLSProfile) DefaultNamespaceLocation(namespaceID string) string {
	return storage.JoinLocation(p.BaseLocation(), namespaceID)
}

func (p *ADLSProfile) DefaultTabularLocation(namespaceLocation, tabularID string) string {
	return storage.JoinLocation(namespaceLocation, tabularID)
}

func (p *ADLSProfile) DefaultMetadataLocation(tabularLocation, codec, metadataID string, sequence int) string {
	return storage.JoinLocation(tabularLocation, "metadata/"+storage.MetadataFileName(sequence, metadataID, codecExtension(codec)))
}

func (p *ADLSProfile) IsAllowedLocation(loc string) bool {
	return storage.SublocationOf(loc, p.BaseLocation(), adlsSchemeAliases)
}

func (p *ADLSProfile) GenerateTableConfig(ctx context.Context, perms storage.Permissions, tabularLocation string) (storage.ClientConfig, *storage.Credential, error) {
	return storage.ClientConfig{
		"adls.account-name": p.cfg.AccountName,
		"adls.filesystem":   p.cfg.Filesystem,
	}, nil, nil
}

func (p *ADLSProfile) ValidateAccess(ctx context.Context, loc string) error {
	target := loc
	if target == "" {
		target = p.BaseLocation()
	}

	if target != p.BaseLocation() && !p.IsAllowedLocation(target) {
		return errs.NewBadRequest("storage", "location outside warehouse base_location", nil)
	}

	return nil
}
