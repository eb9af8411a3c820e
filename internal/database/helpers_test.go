package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"spx-studio/internal/models"
	"spx-studio/internal/vfs"

	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := testStore.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func createTestItem(t *testing.T, userID int64, id, path, itemType string, size int64) *models.StorageItem {
	t.Helper()
	item, err := testStore.CreateStorageItem(context.Background(), &models.StorageItem{
		ID:           id,
		UserID:       userID,
		Name:         vfs.BaseName(path),
		Path:         path,
		ParentPath:   vfs.ParentPath(path),
		Type:         itemType,
		Size:         size,
		LastModified: time.Now().UTC(),
	})
	require.NoError(t, err)
	return item
}

func itemPaths(items []models.StorageItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path)
	}
	return out
}
