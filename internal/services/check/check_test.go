package check

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakekeeper/catalog/internal/domain/authz"
	domaincheck "github.com/lakekeeper/catalog/internal/domain/check"
	"github.com/lakekeeper/catalog/internal/errs"
)

type fakeAuthorizer struct {
	allow map[string]bool

	mu       sync.Mutex
	subjects []authz.Subject
}

func objKey(object authz.ObjectRef, action authz.Action) string {
	return string(object.Kind) + ":" + object.ID + ":" + string(action)
}

func (f *fakeAuthorizer) Check(_ context.Context, subject authz.Subject, object authz.ObjectRef, action authz.Action) (authz.Visibility, error) {
	f.mu.Lock()
	f.subjects = append(f.subjects, subject)
	f.mu.Unlock()

	if f.allow[objKey(object, action)] {
		return authz.VisibilityAllowed, nil
	}
	return authz.VisibilityForbidden, nil
}

type fakeResolver struct {
	ids map[string]string
}

func refKey(ref domaincheck.ResourceRef) string {
	if ref.Name == nil {
		return ""
	}
	return string(ref.Kind) + ":" + *ref.Name
}

func (f *fakeResolver) Resolve(_ context.Context, ref domaincheck.ResourceRef) (string, bool, error) {
	id, ok := f.ids[refKey(ref)]
	return id, ok, nil
}

func strPtr(s string) *string { return &s }

func TestCoordinator_Run_PreservesOrder(t *testing.T) {
	authorizer := &fakeAuthorizer{allow: map[string]bool{
		objKey(authz.ObjectRef{Kind: authz.KindTable, ID: "tbl-1"}, authz.ActionReadData):  true,
		objKey(authz.ObjectRef{Kind: authz.KindTable, ID: "tbl-2"}, authz.ActionWriteData): false,
	}}

	coordinator := NewCoordinator(authorizer, nil)

	req := domaincheck.Request{Checks: []domaincheck.Item{
		{Resource: domaincheck.ResourceRef{Kind: authz.KindTable, ID: strPtr("tbl-1")}, Action: authz.ActionReadData},
		{Resource: domaincheck.ResourceRef{Kind: authz.KindTable, ID: strPtr("tbl-2")}, Action: authz.ActionWriteData},
	}}

	resp, err := coordinator.Run(context.Background(), authz.Subject{Type: "user", ID: "alice"}, req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Allowed)
	assert.False(t, resp.Results[1].Allowed)
}

func TestCoordinator_Run_UnresolvableNameDefaultsToNotAllowed(t *testing.T) {
	authorizer := &fakeAuthorizer{allow: map[string]bool{}}
	resolver := &fakeResolver{ids: map[string]string{}}

	coordinator := NewCoordinator(authorizer, resolver)

	req := domaincheck.Request{Checks: []domaincheck.Item{
		{Resource: domaincheck.ResourceRef{Kind: authz.KindTable, Name: strPtr("missing")}, Action: authz.ActionReadData},
	}}

	resp, err := coordinator.Run(context.Background(), authz.Subject{Type: "user", ID: "alice"}, req)
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Allowed)
}

func TestCoordinator_Run_ErrorOnNotFoundAbortsBatch(t *testing.T) {
	authorizer := &fakeAuthorizer{allow: map[string]bool{}}
	resolver := &fakeResolver{ids: map[string]string{}}

	coordinator := NewCoordinator(authorizer, resolver)

	req := domaincheck.Request{
		ErrorOnNotFound: true,
		Checks: []domaincheck.Item{
			{Resource: domaincheck.ResourceRef{Kind: authz.KindTable, Name: strPtr("missing")}, Action: authz.ActionReadData},
		},
	}

	_, err := coordinator.Run(context.Background(), authz.Subject{Type: "user", ID: "alice"}, req)
	require.Error(t, err)
	_, ok := err.(errs.NotFoundError)
	assert.True(t, ok)
}

func TestCoordinator_Run_PerItemSubjectOverride(t *testing.T) {
	authorizer := &fakeAuthorizer{allow: map[string]bool{
		objKey(authz.ObjectRef{Kind: authz.KindTable, ID: "tbl-1"}, authz.ActionReadData): true,
	}}

	coordinator := NewCoordinator(authorizer, nil)
	override := authz.Subject{Type: "user", ID: "bob"}

	req := domaincheck.Request{Checks: []domaincheck.Item{
		{Resource: domaincheck.ResourceRef{Kind: authz.KindTable, ID: strPtr("tbl-1")}, Action: authz.ActionReadData, Subject: &override},
	}}

	resp, err := coordinator.Run(context.Background(), authz.Subject{Type: "user", ID: "alice"}, req)
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Allowed)
	assert.Equal(t, []authz.Subject{override}, authorizer.subjects)
}
