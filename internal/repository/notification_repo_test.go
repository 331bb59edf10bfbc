package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitjobs/notifier/internal/domain"
)

func seed(t *testing.T, repo *MockNotificationRepository, count int) []*domain.Notification {
	t.Helper()
	userID := uuid.New()
	repo.AddUser(userID, "user@example.com")

	recipients := make([]uuid.UUID, count)
	for i := range recipients {
		recipients[i] = userID
	}
	created, err := repo.Enqueue(context.Background(), &domain.NewNotification{
		Kind:         domain.KindEmailVerification,
		Recipients:   recipients,
		TemplateData: json.RawMessage(`{"link":"https://x/verify-email/1"}`),
	})
	require.NoError(t, err)
	return created
}

func TestMockRepository_SkipsLockedRows(t *testing.T) {
	repo := NewMockNotificationRepository()
	created := seed(t, repo, 2)
	ctx := context.Background()

	first, err := repo.Begin(ctx)
	require.NoError(t, err)
	second, err := repo.Begin(ctx)
	require.NoError(t, err)

	a, err := repo.DequeueOne(ctx, first)
	require.NoError(t, err)
	b, err := repo.DequeueOne(ctx, second)
	require.NoError(t, err)

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, created[0].ID, a.ID, "oldest row goes to the first lease")
	assert.Equal(t, created[1].ID, b.ID, "second lease skips the locked row")
	assert.Equal(t, "user@example.com", a.Email)

	third, err := repo.Begin(ctx)
	require.NoError(t, err)
	none, err := repo.DequeueOne(ctx, third)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMockRepository_RollbackReleasesRow(t *testing.T) {
	repo := NewMockNotificationRepository()
	created := seed(t, repo, 1)
	ctx := context.Background()

	lease, _ := repo.Begin(ctx)
	n, err := repo.DequeueOne(ctx, lease)
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessed(ctx, lease, n.ID, nil))
	require.NoError(t, repo.Rollback(ctx, lease))

	got, err := repo.GetByID(ctx, created[0].ID)
	require.NoError(t, err)
	assert.False(t, got.Processed, "rolled back write must not be visible")

	lease, _ = repo.Begin(ctx)
	again, err := repo.DequeueOne(ctx, lease)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, created[0].ID, again.ID)
}

func TestMockRepository_MarkProcessedIsIdempotent(t *testing.T) {
	repo := NewMockNotificationRepository()
	created := seed(t, repo, 1)
	ctx := context.Background()

	lease, _ := repo.Begin(ctx)
	n, err := repo.DequeueOne(ctx, lease)
	require.NoError(t, err)

	failure := "smtp: 421 try later"
	require.NoError(t, repo.MarkProcessed(ctx, lease, n.ID, &failure))
	require.NoError(t, repo.MarkProcessed(ctx, lease, n.ID, nil))
	require.NoError(t, repo.Commit(ctx, lease))

	got, err := repo.GetByID(ctx, created[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Nil(t, got.Error, "last write wins")
	assert.NotNil(t, got.ProcessedAt)
}

func TestMockRepository_UnknownRecipient(t *testing.T) {
	repo := NewMockNotificationRepository()

	_, err := repo.Enqueue(context.Background(), &domain.NewNotification{
		Kind:       domain.KindTeamInvitation,
		Recipients: []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownRecipient)
}

func TestBuildListWhere(t *testing.T) {
	kind := domain.KindTeamInvitation
	processed := true
	failed := true

	where, args := buildListWhere(domain.ListFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildListWhere(domain.ListFilter{Kind: &kind, Processed: &processed, Failed: &failed})
	assert.Equal(t, " WHERE n.kind = $1 AND n.processed = $2 AND n.error IS NOT NULL", where)
	assert.Equal(t, []any{"team-invitation", true}, args)

	failed = false
	where, args = buildListWhere(domain.ListFilter{Failed: &failed})
	assert.Equal(t, " WHERE n.error IS NULL", where)
	assert.Empty(t, args)
}
