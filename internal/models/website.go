package models

import "time"

type Website struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	HTMLContent  string    `json:"html_content"`
	CSSContent   string    `json:"css_content"`
	JSContent    string    `json:"js_content"`
	IsPublished  bool      `json:"is_published"`
	Domain       *string   `json:"domain"`
	LastModified time.Time `json:"last_modified"`
}
