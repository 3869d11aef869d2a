package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

func TestProjectService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.contact(t, "dana@example.com")
	user, _, err := f.customers.EnsureAccount(ctx, EnsureAccountInput{ContactID: &c.ID})
	require.NoError(t, err)

	project, err := f.projects.Create(ctx, CreateProjectInput{CustomerID: user.ID, Title: "Install", NotifyCustomer: true})
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusPending, project.Status)
	assert.Len(t, f.sink.Of("project_update"), 1)

	_, err = f.projects.Create(ctx, CreateProjectInput{Title: "No owner"})
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestProjectService_Create_UnknownOwnerSkipsNotification(t *testing.T) {
	f := newFixture(t)

	project, err := f.projects.Create(context.Background(), CreateProjectInput{CustomerID: 77, Title: "Install", NotifyCustomer: true})
	require.NoError(t, err)
	assert.NotZero(t, project.ID)
	assert.Empty(t, f.sink.Of("project_update"))
}

func TestProjectService_ProgressUpdatesAreAppendOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, err := f.projects.Create(ctx, CreateProjectInput{CustomerID: 1, Title: "Install"})
	require.NoError(t, err)

	steps := []entity.ProgressUpdate{
		{Status: "Materials Ordered", Note: "Oak planks ordered"},
		{Status: "Subfloor Prep", Note: "Leveling compound poured", Images: []string{"https://cdn.example.com/a.jpg"}},
		{Status: "Installation", Note: "Half of the living room done"},
	}

	previous := []entity.ProgressUpdate{}
	for i, step := range steps {
		project, err = f.projects.AddProgressUpdate(ctx, project.ID, step, false)
		require.NoError(t, err)

		require.Len(t, project.ProgressUpdates, i+1)
		assert.Equal(t, previous, project.ProgressUpdates[:i], "earlier entries unchanged")
		assert.Equal(t, step.Status, project.Status)
		previous = append([]entity.ProgressUpdate(nil), project.ProgressUpdates...)
	}

	_, err = f.projects.AddProgressUpdate(ctx, project.ID, entity.ProgressUpdate{Note: "no status"}, false)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = f.projects.AddProgressUpdate(ctx, 404, entity.ProgressUpdate{Status: "x"}, false)
	assert.True(t, apperr.IsNotFound(err))
}

func TestProjectService_AddDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.contact(t, "dana@example.com")
	user, _, err := f.customers.EnsureAccount(ctx, EnsureAccountInput{ContactID: &c.ID})
	require.NoError(t, err)
	project, err := f.projects.Create(ctx, CreateProjectInput{CustomerID: user.ID, Title: "Install"})
	require.NoError(t, err)

	project, err = f.projects.AddDocument(ctx, project.ID, entity.ProjectDocument{Name: "Warranty", URL: "https://cdn.example.com/w.pdf", Type: "warranty"}, true)
	require.NoError(t, err)
	require.Len(t, project.Documents, 1)
	assert.False(t, project.Documents[0].UploadDate.IsZero())
	assert.Len(t, f.sink.Of("document"), 1)

	_, err = f.projects.AddDocument(ctx, project.ID, entity.ProjectDocument{Name: "No URL"}, false)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestProjectService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project, err := f.projects.Create(ctx, CreateProjectInput{CustomerID: 1, Title: "Install"})
	require.NoError(t, err)

	project, err = f.projects.UpdateStatus(ctx, project.ID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, "Completed", project.Status)

	_, err = f.projects.UpdateStatus(ctx, 404, "Completed")
	assert.True(t, apperr.IsNotFound(err))
}
