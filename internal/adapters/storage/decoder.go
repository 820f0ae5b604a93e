package storage

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/lakekeeper/catalog/internal/domain/storage"
)

// Decoder dispatches a warehouse's persisted (flavor, JSON blob) storage
// profile to the concrete Profile implementation for that flavor,
// wiring an STS client into every S3Profile it builds so vended
// credentials are available without a second round trip.
type Decoder struct {
	stsClient *sts.Client
}

// NewDecoder builds a Decoder that hands stsClient to every S3Profile it
// decodes. stsClient may be nil, in which case S3 profiles decode but
// cannot vend credentials.
func NewDecoder(stsClient *sts.Client) *Decoder {
	return &Decoder{stsClient: stsClient}
}

// Decode implements warehouse.ProfileDecoder.
func (d *Decoder) Decode(flavor string, blob []byte) (storage.Profile, error) {
	switch flavor {
	case "s3":
		var cfg S3Config
		if err := json.Unmarshal(blob, &cfg); err != nil {
			return nil, fmt.Errorf("decode s3 profile: %w", err)
		}

		return NewS3Profile(cfg, d.stsClient), nil
	case "adls":
		var cfg ADLSConfig
		if err := json.Unmarshal(blob, &cfg); err != nil {
			return nil, fmt.Errorf("decode adls profile: %w", err)
		}

		return NewADLSProfile(cfg), nil
	case "gcs":
		var cfg GCSConfig
		if err := json.Unmarshal(blob, &cfg); err != nil {
			return nil, fmt.Errorf("decode gcs profile: %w", err)
		}

		return NewGCSProfile(cfg), nil
	default:
		return nil, fmt.Errorf("unknown storage profile type %q", flavor)
	}
}
