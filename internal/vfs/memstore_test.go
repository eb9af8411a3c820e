package vfs

import (
	"context"
	"sort"
	"strings"
	"sync"

	"spx-studio/internal/models"
)

// memStore keeps rows in maps. InTx snapshots the maps and restores them when
// fn fails, which is enough to observe rollback behaviour.
type memStore struct {
	mu    sync.Mutex
	users map[int64]models.User
	items map[string]models.StorageItem
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]models.User),
		items: make(map[string]models.StorageItem),
	}
}

func (m *memStore) addUser(id int64, plan string) {
	m.users[id] = models.User{ID: id, Username: "user", Plan: plan}
}

func (m *memStore) InTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[int64]models.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	items := make(map[string]models.StorageItem, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}

	if err := fn(m); err != nil {
		m.users, m.items = users, items
		return err
	}
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) LockUserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return m.GetUserByID(ctx, id)
}

func (m *memStore) UpdateUserStorage(ctx context.Context, userID int64, bytesChange int64) error {
	u := m.users[userID]
	u.StorageUsedBytes += bytesChange
	m.users[userID] = u
	return nil
}

func (m *memStore) GetStorageItemByID(ctx context.Context, id string) (*models.StorageItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memStore) ListStorageItems(ctx context.Context, userID int64, parentPath string) ([]models.StorageItem, error) {
	items := []models.StorageItem{}
	for _, item := range m.items {
		if item.UserID == userID && item.ParentPath == parentPath {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (m *memStore) StoragePathExists(ctx context.Context, userID int64, path string) (bool, error) {
	for _, item := range m.items {
		if item.UserID == userID && item.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateStorageItem(ctx context.Context, item *models.StorageItem) (*models.StorageItem, error) {
	if exists, _ := m.StoragePathExists(ctx, item.UserID, item.Path); exists {
		return nil, ErrPathExists
	}
	m.items[item.ID] = *item
	created := *item
	return &created, nil
}

func (m *memStore) DeleteStorageItem(ctx context.Context, userID int64, id string) ([]models.StorageItem, error) {
	item, ok := m.items[id]
	if !ok || item.UserID != userID {
		return nil, nil
	}
	delete(m.items, id)
	return []models.StorageItem{item}, nil
}

func (m *memStore) DeleteStorageTree(ctx context.Context, userID int64, path string) ([]models.StorageItem, error) {
	var removed []models.StorageItem
	for id, item := range m.items {
		if item.UserID != userID {
			continue
		}
		if item.Path == path || strings.HasPrefix(item.Path, path+"/") {
			removed = append(removed, item)
			delete(m.items, id)
		}
	}
	return removed, nil
}

func (m *memStore) SumStorageUsed(ctx context.Context, userID int64) (int64, error) {
	var total int64
	for _, item := range m.items {
		if item.UserID == userID && !item.IsFolder() {
			total += item.Size
		}
	}
	return total, nil
}
