package models

import "time"

const FolderType = "folder"

type StorageItem struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ParentPath   string    `json:"parent_path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

func (i *StorageItem) IsFolder() bool {
	return i.Type == FolderType
}
