package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spx-studio/internal/models"
	"spx-studio/internal/vfs"

	"github.com/jackc/pgx/v5"
)

const storageItemColumns = `id, user_id, name, path, parent_path, type, size, last_modified`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanStorageItems(rows pgx.Rows) ([]models.StorageItem, error) {
	defer rows.Close()

	var items []models.StorageItem
	for rows.Next() {
		var item models.StorageItem
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Name, &item.Path, &item.ParentPath,
			&item.Type, &item.Size, &item.LastModified,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if items == nil {
		return []models.StorageItem{}, nil
	}

	return items, nil
}

func (q *Queries) GetStorageItemByID(ctx context.Context, id string) (*models.StorageItem, error) {
	defer observe("storage_items.get")()

	query := `SELECT ` + storageItemColumns + ` FROM storage_items WHERE id = $1`
	var item models.StorageItem
	err := q.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.UserID, &item.Name, &item.Path, &item.ParentPath,
		&item.Type, &item.Size, &item.LastModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListStorageItems returns the rows whose parent is parentPath, folders first.
func (q *Queries) ListStorageItems(ctx context.Context, userID int64, parentPath string) ([]models.StorageItem, error) {
	defer observe("storage_items.list")()

	query := `
		SELECT ` + storageItemColumns + `
		FROM storage_items
		WHERE user_id = $1 AND parent_path = $2
		ORDER BY (type = 'folder') DESC, name
	`
	rows, err := q.db.Query(ctx, query, userID, parentPath)
	if err != nil {
		return nil, err
	}
	return scanStorageItems(rows)
}

func (q *Queries) StoragePathExists(ctx context.Context, userID int64, path string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM storage_items WHERE user_id = $1 AND path = $2)`
	var exists bool
	err := q.db.QueryRow(ctx, query, userID, path).Scan(&exists)
	return exists, err
}

func (q *Queries) CreateStorageItem(ctx context.Context, arg *models.StorageItem) (*models.StorageItem, error) {
	defer observe("storage_items.create")()

	query := `
		INSERT INTO storage_items (id, user_id, name, path, parent_path, type, size, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + storageItemColumns
	var item models.StorageItem
	err := q.db.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.Name, arg.Path, arg.ParentPath, arg.Type, arg.Size, arg.LastModified,
	).Scan(
		&item.ID, &item.UserID, &item.Name, &item.Path, &item.ParentPath,
		&item.Type, &item.Size, &item.LastModified,
	)
	if err != nil {
		switch code, _ := pgErrorCode(err); code {
		case pgUniqueViolation:
			return nil, fmt.Errorf("%w: %s", vfs.ErrPathExists, arg.Path)
		case pgForeignKeyViolation:
			return nil, fmt.Errorf("%w: user %d", vfs.ErrNotFound, arg.UserID)
		}
		return nil, err
	}
	return &item, nil
}

func (q *Queries) DeleteStorageItem(ctx context.Context, userID int64, id string) ([]models.StorageItem, error) {
	defer observe("storage_items.delete")()

	query := `DELETE FROM storage_items WHERE user_id = $1 AND id = $2 RETURNING ` + storageItemColumns
	rows, err := q.db.Query(ctx, query, userID, id)
	if err != nil {
		return nil, err
	}
	return scanStorageItems(rows)
}

// DeleteStorageTree removes the row at path and every row below it in one
// statement. The prefix match includes the separator, so deleting /docs leaves
// /docs-archive alone.
func (q *Queries) DeleteStorageTree(ctx context.Context, userID int64, path string) ([]models.StorageItem, error) {
	defer observe("storage_items.delete_tree")()

	query := `
		DELETE FROM storage_items
		WHERE user_id = $1 AND (path = $2 OR path LIKE $3)
		RETURNING ` + storageItemColumns
	rows, err := q.db.Query(ctx, query, userID, path, escapeLike(path)+"/%")
	if err != nil {
		return nil, err
	}
	return scanStorageItems(rows)
}

func (q *Queries) SumStorageUsed(ctx context.Context, userID int64) (int64, error) {
	defer observe("storage_items.sum")()

	query := `SELECT COALESCE(SUM(size), 0)::BIGINT FROM storage_items WHERE user_id = $1 AND type <> 'folder'`
	var used int64
	err := q.db.QueryRow(ctx, query, userID).Scan(&used)
	return used, err
}
