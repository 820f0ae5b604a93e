// Package storage models the StorageProfile/StorageCredential closed
// variant family: a fixed set of cloud backends behind one capability
// interface, favoring tagged variants over inheritance.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Flavor distinguishes S3-compatible deployment targets that otherwise
// share the S3Profile shape (AWS vs S3-compatible third parties).
type Flavor string

const (
	FlavorAWS    Flavor = "aws"
	FlavorCustom Flavor = "s3-compat"
)

// URLStyle controls how S3 request signing addresses a bucket.
type URLStyle string

const (
	URLStyleVirtualHost URLStyle = "virtual-host"
	URLStylePath        URLStyle = "path"
	URLStyleAuto        URLStyle = "auto"
)

// Permissions requested for a vended-credential / table-config response.
type Permissions struct {
	Read  bool
	Write bool
	List  bool
	Delete bool
}

// ClientConfig is the set of client-facing properties returned alongside
// vended credentials (e.g. region, endpoint overrides) in a
// generate_table_config response.
type ClientConfig map[string]string

// Credential is an opaque, backend-specific vended credential; its JSON
// shape is discriminated by Type and must never be logged verbatim (see
// Redacted).
type Credential struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"-"`
}

// Redacted renders a debug-safe view of a Credential; credential values
// carry secrets and must never be logged verbatim.
func (c Credential) Redacted() map[string]any {
	redacted := make(map[string]any, len(c.Values))
	for k := range c.Values {
		redacted[k] = "***"
	}

	redacted["type"] = c.Type

	return redacted
}

// Profile is the capability set every storage-profile variant implements.
type Profile interface {
	// BaseLocation returns the canonical, scheme-exact base location of
	// the warehouse this profile belongs to.
	BaseLocation() string

	// DefaultNamespaceLocation appends the namespace id to BaseLocation.
	DefaultNamespaceLocation(namespaceID string) string

	// DefaultTabularLocation appends the tabular id to a namespace location.
	DefaultTabularLocation(namespaceLocation, tabularID string) string

	// DefaultMetadataLocation appends a metadata/%05d-{uuid}{ext}.metadata.json
	// suffix to a tabular location.
	DefaultMetadataLocation(tabularLocation, codec, metadataID string, sequence int) string

	// IsAllowedLocation reports whether loc is a strict sublocation of
	// BaseLocation, allowing the scheme aliases this variant recognizes.
	// The exact base itself is never an allowed location.
	IsAllowedLocation(loc string) bool

	// GenerateTableConfig returns client configuration and a downscoped
	// credential sized to exactly tabularLocation and its subtree.
	GenerateTableConfig(ctx context.Context, perms Permissions, tabularLocation string) (ClientConfig, *Credential, error)

	// ValidateAccess performs read/write/delete probes against
	// tabularLocation (or BaseLocation when empty) using both the direct
	// and vended-credential paths.
	ValidateAccess(ctx context.Context, loc string) error
}

// SublocationOf reports whether candidate is a strict descendant of base
// once both are scheme-normalized.
func SublocationOf(candidate, base string, schemeAliases map[string][]string) bool {
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	bu, err := url.Parse(base)
	if err != nil {
		return false
	}

	if !schemesCompatible(cu.Scheme, bu.Scheme, schemeAliases) {
		return false
	}

	if cu.Host != bu.Host {
		return false
	}

	cp := strings.Trim(cu.Path, "/")
	bp := strings.Trim(bu.Path, "/")

	if cp == bp {
		return false
	}

	return strings.HasPrefix(cp+"/", bp+"/")
}

func schemesCompatible(a, b string, aliases map[string][]string) bool {
	if a == b {
		return true
	}

	for canon, group := range aliases {
		if containsFold(group, a) && (b == canon || containsFold(group, b)) {
			return true
		}
	}

	return false
}

func containsFold(items []string, v string) bool {
	for _, i := range items {
		if strings.EqualFold(i, v) {
			return true
		}
	}

	return false
}

// JoinLocation appends segment to base with exactly one separating slash.
func JoinLocation(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(segment, "/")
}

// MetadataFileName builds the "%05d-{uuid}{ext}.metadata.json" filename
// used for a table or view's default metadata location, ext being the
// codec-specific suffix (e.g. ".gz") or empty for uncompressed JSON.
func MetadataFileName(sequence int, metadataID, ext string) string {
	return fmt.Sprintf("%05d-%s%s.metadata.json", sequence, metadataID, ext)
}
