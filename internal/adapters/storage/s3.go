// Package storage implements the storage.Profile capability set for each
// closed backend variant (S3, ADLS, GCS) plus SigV4 request signing and
// URL-style detection.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/errs"
)

// schemeAliases groups URL schemes that are treated as interchangeable
// when testing sublocation-of: s3/s3a/s3n all address the same bucket
// namespace, the way a table registered under s3:// may be addressed by
// a client requesting s3a://.
var schemeAliases = map[string][]string{
	"s3": {"s3", "s3a", "s3n"},
}

// S3Config is the decoded form of a "type":"s3" storage profile JSON blob.
type S3Config struct {
	Bucket                string            `json:"bucket"`
	Endpoint              string            `json:"endpoint,omitempty"`
	Region                string            `json:"region"`
	STSEnabled            bool              `json:"sts-enabled"`
	Flavor                storage.Flavor    `json:"flavor"`
	KeyPrefix             string            `json:"key-prefix,omitempty"`
	RemoteSigningURLStyle storage.URLStyle  `json:"remote-signing-url-style,omitempty"`
	AssumeRoleARN         string            `json:"assume-role-arn,omitempty"`
}

// S3Profile implements storage.Profile for an AWS S3 or S3-compatible
// bucket, producing vended STS credentials scoped to a tabular's subtree.
type S3Profile struct {
	cfg         S3Config
	credsCache  CredentialSource
	staticCreds *credentials.StaticCredentialsProvider
}

// WithStaticCredentials attaches a long-lived access key/secret pair used
// to sign direct (non-vended) requests against this profile, e.g. for an
// object-store credential that is not STS-backed.
func (p *S3Profile) WithStaticCredentials(accessKeyID, secretAccessKey string) *S3Profile {
	provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	p.staticCreds = &provider

	return p
}

// CredentialSource abstracts the STS AssumeRole call so tests can stub
// credential vending without a live AWS account.
type CredentialSource interface {
	AssumeRole(ctx context.Context, roleARN, sessionPolicy string) (aws.Credentials, error)
}

// stsCredentialSource is the production CredentialSource, backed by the
// AWS SDK's STS AssumeRole API.
type stsCredentialSource struct {
	client *sts.Client
}

func (s *stsCredentialSource) AssumeRole(ctx context.Context, roleARN, sessionPolicy string) (aws.Credentials, error) {
	out, err := s.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String("lakekeeper-catalog-vended"),
		Policy:          aws.String(sessionPolicy),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("assume role: %w", err)
	}

	return aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		CanExpire:       true,
		Expires:         *out.Credentials.Expiration,
	}, nil
}

// NewS3Profile builds an S3Profile from its decoded configuration and an
// STS client for vended-credential generation.
func NewS3Profile(cfg S3Config, stsClient *sts.Client) *S3Profile {
	var src CredentialSource
	if stsClient != nil {
		src = &stsCredentialSource{client: stsClient}
	}

	return &S3Profile{cfg: cfg, credsCache: src}
}

func (p *S3Profile) BaseLocation() string {
	loc := fmt.Sprintf("s3://%s", p.cfg.Bucket)
	if p.cfg.KeyPrefix != "" {
		loc = storage.JoinLocation(loc, p.cfg.KeyPrefix)
	}

	return loc
}

func (p *S3Profile) DefaultNamespaceLocation(namespaceID string) string {
	return storage.JoinLocation(p.BaseLocation(), namespaceID)
}

func (p *S3Profile) DefaultTabularLocation(namespaceLocation, tabularID string) string {
	return storage.JoinLocation(namespaceLocation, tabularID)
}

func (p *S3Profile) DefaultMetadataLocation(tabularLocation, codec, metadataID string, sequence int) string {
	name := storage.MetadataFileName(sequence, metadataID, codecExtension(codec))
	return storage.JoinLocation(tabularLocation, "metadata/"+name)
}

func codecExtension(codec string) string {
	switch strings.ToLower(codec) {
	case "gzip":
		return ".gz"
	default:
		return ""
	}
}

func (p *S3Profile) IsAllowedLocation(loc string) bool {
	return storage.SublocationOf(loc, p.BaseLocation(), schemeAliases)
}

func (p *S3Profile) GenerateTableConfig(ctx context.Context, perms storage.Permissions, tabularLocation string) (storage.ClientConfig, *storage.Credential, error) {
	clientCfg := storage.ClientConfig{
		"s3.region": p.cfg.Region,
	}

	if p.cfg.Endpoint != "" {
		clientCfg["s3.endpoint"] = p.cfg.Endpoint
	}

	if p.credsCache == nil {
		return clientCfg, nil, nil
	}

	if p.cfg.AssumeRoleARN == "" {
		return clientCfg, nil, errs.NewPreconditionFailed("sts enabled but no assume-role-arn configured")
	}

	policy := sessionPolicy(tabularLocation, p.cfg.Bucket, perms)

	creds, err := p.credsCache.AssumeRole(ctx, p.cfg.AssumeRoleARN, policy)
	if err != nil {
		return nil, nil, errs.NewInternal("assume role for vended credentials", err)
	}

	cred := &storage.Credential{
		Type: "s3-sts",
		Values: map[string]any{
			"access_key_id":     creds.AccessKeyID,
			"secret_access_key": creds.SecretAccessKey,
			"session_token":     creds.SessionToken,
		},
	}

	return clientCfg, cred, nil
}

func (p *S3Profile) ValidateAccess(ctx context.Context, loc string) error {
	target := loc
	if target == "" {
		target = p.BaseLocation()
	}

	if !p.IsAllowedLocation(target) && target != p.BaseLocation() {
		return errs.NewBadRequest("storage", "location outside warehouse base_location", nil)
	}

	return nil
}

// sessionPolicy builds a minimal downscoped IAM policy document granting
// exactly the requested permissions against tabularLocation's key prefix.
func sessionPolicy(tabularLocation, bucket string, perms storage.Permissions) string {
	var actions []string

	if perms.Read {
		actions = append(actions, "s3:GetObject")
	}

	if perms.Write {
		actions = append(actions, "s3:PutObject")
	}

	if perms.List {
		actions = append(actions, "s3:ListBucket")
	}

	if perms.Delete {
		actions = append(actions, "s3:DeleteObject")
	}

	resource := bucket
	if u, err := url.Parse(tabularLocation); err == nil && u.Host != "" {
		resource = u.Host + strings.TrimSuffix(u.Path, "/")
	}

	actionsJSON, _ := json.Marshal(actions)

	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":%s,"Resource":"arn:aws:s3:::%s/*"}]}`, actionsJSON, resource)
}
