// Package warehouse orchestrates warehouse create/find/list/rename/
// status/protection/delete on top of warehouse.Repository, decoding each
// profile blob into a concrete storage.Profile via a ProfileDecoder and
// granting the creating subject ownership.
package warehouse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/domain/warehouse"
	"github.com/lakekeeper/catalog/internal/errs"
	svcauthz "github.com/lakekeeper/catalog/internal/services/authz"
)

// ProfileDecoder turns a warehouse's persisted (flavor, JSON blob) pair
// back into a concrete storage.Profile, e.g. dispatching to S3Profile,
// ADLSProfile or GCSProfile by flavor.
type ProfileDecoder interface {
	Decode(flavor string, blob []byte) (storage.Profile, error)
}

// Service implements the warehouse-management use cases.
type Service struct {
	repo    warehouse.Repository
	guard   *svcauthz.Guard
	decoder ProfileDecoder
}

// NewService builds a Service over repo, guard and decoder.
func NewService(repo warehouse.Repository, guard *svcauthz.Guard, decoder ProfileDecoder) *Service {
	return &Service{repo: repo, guard: guard, decoder: decoder}
}

// Create validates the storage profile decodes cleanly, inserts the
// warehouse, and grants subject ownership over it.
func (s *Service) Create(ctx context.Context, subject authz.Subject, in warehouse.CreateWarehouseInput) (*warehouse.Warehouse, error) {
	flavorType, err := decodeFlavorType(in.StorageProfileJSON)
	if err != nil {
		return nil, errs.NewBadRequest("warehouse", "invalid storage profile", err)
	}

	if _, err := s.decoder.Decode(flavorType, in.StorageProfileJSON); err != nil {
		return nil, errs.NewBadRequest("warehouse", "storage profile failed validation", err)
	}

	now := time.Now().UTC()

	w := &warehouse.Warehouse{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Status:    warehouse.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Create(ctx, w, in.StorageProfileJSON, flavorType)
	if err != nil {
		return nil, err
	}

	if err := s.guard.GrantOwnership(ctx, subject, authz.ObjectRef{Kind: authz.KindWarehouse, ID: created.ID}); err != nil {
		return nil, err
	}

	return created, nil
}

// Find looks up a warehouse by id and attaches its decoded profile.
func (s *Service) Find(ctx context.Context, id string) (*warehouse.Warehouse, error) {
	w, blob, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	flavorType, err := decodeFlavorType(blob)
	if err != nil {
		return w, nil
	}

	profile, err := s.decoder.Decode(flavorType, blob)
	if err == nil {
		w.Profile = profile
	}

	return w, nil
}

// decodeFlavorType reads the discriminating "type" field off a storage
// profile JSON blob without decoding the rest of its shape.
func decodeFlavorType(blob []byte) (string, error) {
	var discriminator struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(blob, &discriminator); err != nil {
		return "", err
	}

	return discriminator.Type, nil
}

// ListByProject returns every warehouse owned by projectID.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*warehouse.Warehouse, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// UpdateStorageProfile replaces a warehouse's profile after re-validating
// it decodes cleanly.
func (s *Service) UpdateStorageProfile(ctx context.Context, id string, profileJSON []byte, flavor string) error {
	if _, err := s.decoder.Decode(flavor, profileJSON); err != nil {
		return errs.NewBadRequest("warehouse", "storage profile failed validation", err)
	}

	return s.repo.UpdateStorageProfile(ctx, id, profileJSON, flavor)
}

// SetStatus transitions a warehouse between active and inactive.
func (s *Service) SetStatus(ctx context.Context, id string, status warehouse.Status) error {
	return s.repo.SetStatus(ctx, id, status)
}

// SetProtected toggles a warehouse's protection flag.
func (s *Service) SetProtected(ctx context.Context, id string, protected bool) error {
	return s.repo.SetProtected(ctx, id, protected)
}

// Rename changes a warehouse's name within its project.
func (s *Service) Rename(ctx context.Context, id, name string) error {
	return s.repo.Rename(ctx, id, name)
}

// Delete removes a warehouse; callers must have already drained its
// namespaces and tabulars, or set force semantics upstream.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
