// Package project orchestrates project create/find/list/delete on top of
// project.Repository and the authorization guard, granting the creating
// subject ownership over each new project.
package project

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	"github.com/lakekeeper/catalog/internal/domain/project"
	svcauthz "github.com/lakekeeper/catalog/internal/services/authz"
)

// Service implements the project-management use cases.
type Service struct {
	repo  project.Repository
	guard *svcauthz.Guard
}

// NewService builds a Service over repo and guard.
func NewService(repo project.Repository, guard *svcauthz.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// Create inserts a new project and grants subject ownership over it.
func (s *Service) Create(ctx context.Context, subject authz.Subject, in project.CreateProjectInput) (*project.Project, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()

	p := &project.Project{ID: id, Name: in.Name, CreatedAt: now, UpdatedAt: now}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.guard.GrantOwnership(ctx, subject, authz.ObjectRef{Kind: authz.KindProject, ID: created.ID}); err != nil {
		return nil, err
	}

	return created, nil
}

// Find looks up a project by id, subject to authorization by the caller.
func (s *Service) Find(ctx context.Context, id string) (*project.Project, error) {
	return s.repo.Find(ctx, id)
}

// ListAll returns every project; callers are expected to have already
// checked list-all-projects before calling.
func (s *Service) ListAll(ctx context.Context) ([]*project.Project, error) {
	return s.repo.ListAll(ctx)
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
