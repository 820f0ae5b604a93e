package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/errs"
)

// SignResult is the s3/sign endpoint's response shape: a signed URI plus
// the provider-required headers the caller must attach.
type SignResult struct {
	URI     string              `json:"uri"`
	Headers map[string][]string `json:"headers"`
}

// Signer resolves a signing request against one of this warehouse's
// tabulars and produces SigV4 headers sized to that tabular's location.
type Signer struct {
	profile *S3Profile
}

// NewSigner builds a Signer bound to profile.
func NewSigner(profile *S3Profile) *Signer {
	return &Signer{profile: profile}
}

// readMethods and writeMethods classify HTTP verbs for the
// authorize-the-method step of the signing protocol.
var readMethods = map[string]bool{http.MethodGet: true, http.MethodHead: true}
var writeMethods = map[string]bool{http.MethodPut: true, http.MethodPost: true, http.MethodDelete: true}

// Sign implements the four-step S3 request-signing protocol: authorize
// the method, validate region and sublocation, resolve credentials, and
// produce SigV4 headers with single-pass percent-encoding and the
// x-amz-sha256 payload-checksum mode.
func (s *Signer) Sign(ctx context.Context, method, rawURL string, body []byte, requestRegion, tableLocation string, canRead, canWrite bool) (*SignResult, error) {
	switch {
	case readMethods[strings.ToUpper(method)]:
		if !canRead {
			return nil, errs.NewForbidden("", "read-data", tableLocation)
		}
	case writeMethods[strings.ToUpper(method)]:
		if !canWrite {
			return nil, errs.NewForbidden("", "write-data", tableLocation)
		}
	default:
		return nil, errs.NewMethodNotAllowed(method)
	}

	if requestRegion != "" && requestRegion != s.profile.cfg.Region {
		return nil, errs.NewBadRequest("storage", "region mismatch", nil)
	}

	if !storage.SublocationOf(rawURL, tableLocation, schemeAliases) {
		return nil, errs.NewBadRequest("storage", "request URI does not match table location", nil)
	}

	creds, err := s.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, errs.NewBadRequest("storage", "invalid request URL", err)
	}

	payloadHash := sha256.Sum256(body)
	payloadHashHex := hex.EncodeToString(payloadHash[:])
	req.Header.Set("x-amz-content-sha256", payloadHashHex)

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, payloadHashHex, "s3", s.profile.cfg.Region, time.Now()); err != nil {
		return nil, errs.NewInternal("sign request", err)
	}

	signed, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, errs.NewInternal("parse signed url", err)
	}

	headers := map[string][]string{}
	for k, v := range req.Header {
		if strings.HasPrefix(strings.ToLower(k), "x-amz-") || k == "Authorization" {
			headers[k] = v
		}
	}

	return &SignResult{URI: signed.String(), Headers: headers}, nil
}

func (s *Signer) resolveCredentials(ctx context.Context) (aws.Credentials, error) {
	if s.profile.staticCreds != nil {
		return s.profile.staticCreds.Retrieve(ctx)
	}

	if s.profile.credsCache != nil && s.profile.cfg.AssumeRoleARN != "" {
		creds, err := s.profile.credsCache.AssumeRole(ctx, s.profile.cfg.AssumeRoleARN, "")
		if err != nil {
			return aws.Credentials{}, errs.NewInternal("assume role for signing", err)
		}

		return creds, nil
	}

	return aws.Credentials{}, errs.NewPreconditionFailed("signing requested without credentials on a credentialed profile")
}
