// Package vfs implements the per-user virtual filesystem: folders and files
// kept as flat rows addressed by normalized path strings.
package vfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spx-studio/internal/logging"
	"spx-studio/internal/models"
	"spx-studio/internal/plans"

	"github.com/jaevor/go-nanoid"
)

const DefaultContentType = "application/octet-stream"

// Repository is the row level access the filesystem needs. Lookups return
// nil, nil when the row does not exist.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	LockUserForUpdate(ctx context.Context, id int64) (*models.User, error)
	UpdateUserStorage(ctx context.Context, userID int64, bytesChange int64) error

	GetStorageItemByID(ctx context.Context, id string) (*models.StorageItem, error)
	ListStorageItems(ctx context.Context, userID int64, parentPath string) ([]models.StorageItem, error)
	StoragePathExists(ctx context.Context, userID int64, path string) (bool, error)
	CreateStorageItem(ctx context.Context, item *models.StorageItem) (*models.StorageItem, error)
	DeleteStorageItem(ctx context.Context, userID int64, id string) ([]models.StorageItem, error)
	DeleteStorageTree(ctx context.Context, userID int64, path string) ([]models.StorageItem, error)
	SumStorageUsed(ctx context.Context, userID int64) (int64, error)
}

// Store is a Repository that can run a group of calls atomically.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

type Usage struct {
	Used  int64 `json:"used" example:"10485760"`
	Total int64 `json:"total" example:"16106127360"`
}

type UploadParams struct {
	Dir         string
	Name        string
	Size        int64
	ContentType string
}

type Service struct {
	store Store
	newID func() string
	now   func() time.Time
}

func NewService(store Store) (*Service, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Service{store: store, newID: generateID, now: time.Now}, nil
}

// List returns the direct children of dir. Grandchildren are never included.
func (s *Service) List(ctx context.Context, userID int64, dir string) ([]models.StorageItem, error) {
	items, err := s.store.ListStorageItems(ctx, userID, NormalizePath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}
	return items, nil
}

func (s *Service) CreateFolder(ctx context.Context, userID int64, fullPath string) (*models.StorageItem, error) {
	if strings.TrimSpace(fullPath) == "" {
		return nil, fmt.Errorf("%w: folder path is required", ErrValidation)
	}
	p := NormalizePath(fullPath)
	if p == Root {
		return nil, fmt.Errorf("%w: cannot create the root folder", ErrValidation)
	}

	folder := &models.StorageItem{
		ID:           s.newID(),
		UserID:       userID,
		Name:         BaseName(p),
		Path:         p,
		ParentPath:   ParentPath(p),
		Type:         models.FolderType,
		Size:         0,
		LastModified: s.now().UTC(),
	}

	var created *models.StorageItem
	err := s.store.InTx(ctx, func(r Repository) error {
		exists, err := r.StoragePathExists(ctx, userID, p)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPathExists, p)
		}
		created, err = r.CreateStorageItem(ctx, folder)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", p, err)
	}
	return created, nil
}

// Upload records a file of the given size under dir. The owner's row is
// locked for the duration so concurrent uploads cannot jointly overrun the
// quota, and the usage counter moves in the same transaction as the insert.
func (s *Service) Upload(ctx context.Context, userID int64, arg UploadParams) (*models.StorageItem, error) {
	if err := ValidateName(arg.Name); err != nil {
		return nil, err
	}
	if arg.Size < 0 {
		return nil, fmt.Errorf("%w: size must not be negative", ErrValidation)
	}
	contentType := strings.TrimSpace(arg.ContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}
	if strings.EqualFold(contentType, models.FolderType) {
		return nil, fmt.Errorf("%w: %q is reserved for folders", ErrValidation, contentType)
	}

	p := Join(arg.Dir, arg.Name)
	file := &models.StorageItem{
		ID:           s.newID(),
		UserID:       userID,
		Name:         arg.Name,
		Path:         p,
		ParentPath:   ParentPath(p),
		Type:         contentType,
		Size:         arg.Size,
		LastModified: s.now().UTC(),
	}

	var created *models.StorageItem
	err := s.store.InTx(ctx, func(r Repository) error {
		user, err := r.LockUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}

		used, err := r.SumStorageUsed(ctx, userID)
		if err != nil {
			return err
		}
		limits := plans.Lookup(user.Plan)
		if !limits.FitsStorage(used, arg.Size) {
			logging.Debug("upload rejected by quota",
				logging.Int64("user_id", userID),
				logging.Int64("used", used),
				logging.Int64("size", arg.Size),
				logging.Int64("quota", limits.StorageBytes),
			)
			return fmt.Errorf("%w: %d of %d bytes used, upload needs %d", ErrQuotaExceeded, used, limits.StorageBytes, arg.Size)
		}

		exists, err := r.StoragePathExists(ctx, userID, p)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPathExists, p)
		}

		created, err = r.CreateStorageItem(ctx, file)
		if err != nil {
			return err
		}
		return r.UpdateUserStorage(ctx, userID, arg.Size)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", p, err)
	}
	return created, nil
}

// Get looks an item up by id regardless of owner. Callers decide whether the
// requester may see it.
func (s *Service) Get(ctx context.Context, id string) (*models.StorageItem, error) {
	item, err := s.store.GetStorageItemByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return item, nil
}

// Delete removes an item owned by userID. A folder takes its whole subtree
// with it. Deleting an id that does not exist is a no-op. The removed rows are
// returned so the caller can release their content.
func (s *Service) Delete(ctx context.Context, userID int64, id string) ([]models.StorageItem, error) {
	var removed []models.StorageItem
	err := s.store.InTx(ctx, func(r Repository) error {
		item, err := r.GetStorageItemByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if item.UserID != userID {
			return fmt.Errorf("%w: item %s", ErrUnauthorized, id)
		}

		if item.IsFolder() {
			removed, err = r.DeleteStorageTree(ctx, userID, item.Path)
		} else {
			removed, err = r.DeleteStorageItem(ctx, userID, item.ID)
		}
		if err != nil {
			return err
		}

		if freed := freedBytes(removed); freed > 0 {
			return r.UpdateUserStorage(ctx, userID, -freed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete item %s: %w", id, err)
	}

	if len(removed) > 0 {
		logging.Debug("storage items deleted",
			logging.Int64("user_id", userID),
			logging.String("item_id", id),
			logging.Int("rows", len(removed)),
		)
	}
	return removed, nil
}

// Usage sums the user's file sizes afresh; the denormalized counter is never
// consulted.
func (s *Service) Usage(ctx context.Context, userID int64) (*Usage, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	used, err := s.store.SumStorageUsed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum storage of user %d: %w", userID, err)
	}

	return &Usage{Used: used, Total: plans.Lookup(user.Plan).StorageBytes}, nil
}

func freedBytes(items []models.StorageItem) int64 {
	var total int64
	for _, item := range items {
		if !item.IsFolder() {
			total += item.Size
		}
	}
	return total
}
