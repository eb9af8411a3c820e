package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"spx-studio/internal/logging"
	"spx-studio/internal/metrics"
	"spx-studio/internal/models"
	"spx-studio/internal/storage"
	"spx-studio/internal/vfs"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

// multipart framing allowance on top of the configured file size limit
const uploadOverheadBytes = 1 << 20

type CreateFolderRequest struct {
	Path string `json:"path" example:"/projects/landing"`
}

type ItemEventPayload struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func itemPayload(item *models.StorageItem) ItemEventPayload {
	return ItemEventPayload{ID: item.ID, Path: item.Path, Type: item.Type, Size: item.Size}
}

// @Summary      List a folder
// @Description  Lists the direct children of a folder. Folders come first, then files by name.
// @Tags         storage
// @Produce      json
// @Security     BearerAuth
// @Param        path  query     string  false  "Folder path, defaults to /"
// @Success      200   {array}   models.StorageItem
// @Failure      401   {string}  string "Unauthorized"
// @Failure      500   {string}  string "Internal Server Error"
// @Router       /storage/items [get]
func (s *Server) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	items, err := s.files.List(r.Context(), claims.UserID, r.URL.Query().Get("path"))
	if err != nil {
		storageError(w, r, "Failed to fetch storage items", err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// @Summary      Create a folder
// @Tags         storage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createFolderRequest  body      CreateFolderRequest  true  "Full path of the new folder"
// @Success      201                  {object}  models.StorageItem
// @Failure      400                  {string}  string "Path is required"
// @Failure      401                  {string}  string "Unauthorized"
// @Failure      409                  {string}  string "An item already exists at this path"
// @Failure      500                  {string}  string "Internal Server Error"
// @Router       /storage/folders [post]
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	folder, err := s.files.CreateFolder(r.Context(), claims.UserID, req.Path)
	if err != nil {
		storageError(w, r, "Failed to create folder", err)
		return
	}

	s.recordEvent(r.Context(), claims.UserID, "item_created", itemPayload(folder))
	writeJSON(w, http.StatusCreated, folder)
}

// detectContentType prefers the type the client declared and sniffs the
// content when it is missing or generic. f is rewound afterwards.
func detectContentType(f io.ReadSeeker, declared string) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != vfs.DefaultContentType {
		return declared, nil
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// @Summary      Upload a file
// @Description  Stores a file under the given folder. The upload is rejected when it would exceed the plan's storage quota.
// @Tags         storage
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file    true   "File content"
// @Param        path  formData  string  false  "Target folder, defaults to /"
// @Success      201   {object}  models.StorageItem
// @Failure      400   {string}  string "No file uploaded"
// @Failure      401   {string}  string "Unauthorized"
// @Failure      403   {string}  string "Storage limit exceeded"
// @Failure      409   {string}  string "An item already exists at this path"
// @Failure      413   {string}  string "File too large"
// @Failure      500   {string}  string "Internal Server Error"
// @Router       /storage/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	maxBytes := s.config.Storage.MaxUploadBytes

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+uploadOverheadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType, err := detectContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		internalError(w, r, "Failed to read upload", err)
		return
	}

	item, err := s.files.Upload(r.Context(), claims.UserID, vfs.UploadParams{
		Dir:         r.FormValue("path"),
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		metrics.RecordUpload(header.Size, false)
		storageError(w, r, "Failed to upload file", err)
		return
	}

	if err := s.blobs.Put(r.Context(), item.ID, file, item.Size); err != nil {
		metrics.RecordUpload(header.Size, false)
		// Without content the row would be a dangling entry; take it back out.
		if _, delErr := s.files.Delete(r.Context(), claims.UserID, item.ID); delErr != nil {
			logging.WithContext(r.Context()).Error("failed to roll back storage item",
				logging.String("item_id", item.ID), logging.Err(delErr))
		}
		internalError(w, r, "Failed to upload file", err)
		return
	}

	metrics.RecordUpload(item.Size, true)
	s.recordEvent(r.Context(), claims.UserID, "item_created", itemPayload(item))
	writeJSON(w, http.StatusCreated, item)
}

// ownedItem loads itemId and answers 404/403 itself when the caller may not use it.
func (s *Server) ownedItem(w http.ResponseWriter, r *http.Request) (*models.StorageItem, bool) {
	claims := GetUserFromContext(r.Context())

	item, err := s.files.Get(r.Context(), chi.URLParam(r, "itemId"))
	if err != nil {
		storageError(w, r, "Failed to fetch item", err)
		return nil, false
	}
	if item.UserID != claims.UserID {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return nil, false
	}
	return item, true
}

// @Summary      Download a file
// @Tags         storage
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        itemId  path      string  true  "Item ID"
// @Success      200     {file}    file
// @Failure      400     {string}  string "Cannot download a folder"
// @Failure      401     {string}  string "Unauthorized"
// @Failure      403     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Item not found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /storage/items/{itemId}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	item, ok := s.ownedItem(w, r)
	if !ok {
		return
	}
	if item.IsFolder() {
		http.Error(w, "Cannot download a folder", http.StatusBadRequest)
		return
	}

	content, err := s.blobs.Get(r.Context(), item.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "File content is missing", http.StatusNotFound)
			return
		}
		internalError(w, r, "Failed to read file", err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": item.Name}))
	w.Header().Set("Content-Type", item.Type)
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))

	if _, err := io.Copy(w, content); err != nil {
		logging.WithContext(r.Context()).Warn("download interrupted", logging.String("item_id", item.ID), logging.Err(err))
	}
}

// @Summary      Delete an item
// @Description  Deletes a file, or a folder with everything below it, and frees the storage it used.
// @Tags         storage
// @Security     BearerAuth
// @Param        itemId  path      string  true  "Item ID"
// @Success      204     {null}    nil "No Content"
// @Failure      401     {string}  string "Unauthorized"
// @Failure      403     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Item not found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /storage/items/{itemId} [delete]
func (s *Server) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	item, ok := s.ownedItem(w, r)
	if !ok {
		return
	}

	removed, err := s.files.Delete(r.Context(), claims.UserID, item.ID)
	if err != nil {
		storageError(w, r, "Failed to delete item", err)
		return
	}

	for _, gone := range removed {
		if gone.IsFolder() {
			continue
		}
		if err := s.blobs.Delete(r.Context(), gone.ID); err != nil {
			logging.WithContext(r.Context()).Warn("failed to release file content",
				logging.String("item_id", gone.ID), logging.Err(err))
		}
	}

	if len(removed) > 0 {
		s.recordEvent(r.Context(), claims.UserID, "item_deleted", map[string]interface{}{
			"id":    item.ID,
			"path":  item.Path,
			"count": len(removed),
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Get storage usage
// @Description  Returns the bytes used by the caller's files and the quota of their plan.
// @Tags         storage
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  vfs.Usage
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /storage/usage [get]
func (s *Server) StorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	usage, err := s.files.Usage(r.Context(), claims.UserID)
	if err != nil {
		storageError(w, r, "Failed to fetch storage usage", err)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}
