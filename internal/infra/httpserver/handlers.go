package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appanalyze "github.com/bryanwahyu/leafcheck/internal/application/analyze"
	apphistory "github.com/bryanwahyu/leafcheck/internal/application/history"
	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
	"github.com/bryanwahyu/leafcheck/internal/middleware"
)

const imageField = "image"

// POST /api/analyze (multipart, field "image")
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.d.MaxBodyBytes)
	part, err := imagePart(req)
	if err != nil {
		return err
	}
	defer part.Close()

	res, err := r.d.Analyze.Analyze(req.Context(), middleware.OwnerFromContext(req.Context()), appanalyze.Upload{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, res)
}

// imagePart streams the multipart body up to the image field.
func imagePart(req *http.Request) (*multipart.Part, error) {
	mr, err := req.MultipartReader()
	if err != nil {
		return nil, apperrors.Input(apperrors.CodeMissingFile, "multipart form with an %q field is required", imageField)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Input(apperrors.CodeMissingFile, "field %q is required", imageField)
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, apperrors.Input(apperrors.CodeSizeExceeded, "request body exceeds %d bytes", mbe.Limit)
			}
			return nil, apperrors.Input(apperrors.CodeMissingFile, "malformed multipart body")
		}
		if part.FormName() == imageField {
			return part, nil
		}
		_ = part.Close()
	}
}

// POST /api/analyze/{id}/verify
// Body: {"verified": true, "folderId": 3}
func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID("id", chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	var body struct {
		Verified bool   `json:"verified"`
		FolderID *int64 `json:"folderId"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, err := r.d.Analyze.Verify(req.Context(), appanalyze.VerifyCommand{
		ID:       id,
		Owner:    middleware.OwnerFromContext(req.Context()),
		Verified: body.Verified,
		FolderID: body.FolderID,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, rec)
}

// PUT /api/history/{id}/folder
// Body: {"folderId": 3} or {"folderId": null}
func (r *Router) handleMove(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID("id", chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	var body struct {
		FolderID *int64 `json:"folderId"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	rec, err := r.d.Analyze.Move(req.Context(), id, middleware.OwnerFromContext(req.Context()), body.FolderID)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, rec)
}

// GET /api/history?verified=&limit=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	f, err := historyFilter(req)
	if err != nil {
		return err
	}
	items, err := r.d.History.ListAll(req.Context(), middleware.OwnerFromContext(req.Context()), f)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, items)
}

// GET /api/history/unassigned
func (r *Router) handleHistoryUnassigned(w http.ResponseWriter, req *http.Request) error {
	f, err := historyFilter(req)
	if err != nil {
		return err
	}
	items, err := r.d.History.ListUnassigned(req.Context(), middleware.OwnerFromContext(req.Context()), f)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, items)
}

// GET /api/history/folder/{id}
func (r *Router) handleHistoryFolder(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID("id", chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	f, err := historyFilter(req)
	if err != nil {
		return err
	}
	items, err := r.d.History.ListByFolder(req.Context(), middleware.OwnerFromContext(req.Context()), id, f)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, items)
}

func historyFilter(req *http.Request) (apphistory.Filter, error) {
	q := req.URL.Query()
	verified, err := middleware.ParseOptionalBool("verified", q.Get("verified"))
	if err != nil {
		return apphistory.Filter{}, err
	}
	limit, err := middleware.ParseLimit(q.Get("limit"))
	if err != nil {
		return apphistory.Filter{}, err
	}
	return apphistory.Filter{Verified: verified, Limit: limit}, nil
}

// GET /api/folders
func (r *Router) handleListFolders(w http.ResponseWriter, req *http.Request) error {
	list, err := r.d.Folders.List(req.Context(), middleware.OwnerFromContext(req.Context()))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, list)
}

type folderBody struct {
	Name string `json:"name"`
}

// POST /api/folders
func (r *Router) handleCreateFolder(w http.ResponseWriter, req *http.Request) error {
	var body folderBody
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	f, err := r.d.Folders.Create(req.Context(), middleware.OwnerFromContext(req.Context()), middleware.SanitizeString(body.Name))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, f)
}

// PUT /api/folders/{id}
func (r *Router) handleRenameFolder(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID("id", chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	var body folderBody
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	f, err := r.d.Folders.Rename(req.Context(), middleware.OwnerFromContext(req.Context()), id, middleware.SanitizeString(body.Name))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, f)
}

// DELETE /api/folders/{id}
func (r *Router) handleDeleteFolder(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID("id", chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	n, err := r.d.Folders.Delete(req.Context(), middleware.OwnerFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "unassigned": n})
}

// GET /api/diseases/{key}
func (r *Router) handleDisease(w http.ResponseWriter, req *http.Request) error {
	if r.d.Catalog == nil {
		return apperrors.ErrNotFound
	}
	e, err := r.d.Catalog.Lookup(req.Context(), chi.URLParam(req, "key"))
	if err != nil {
		return apperrors.Storage("catalog lookup", err)
	}
	if e == nil {
		return apperrors.ErrNotFound
	}
	return WriteJSON(w, http.StatusOK, e)
}

// GET /uploads/*
func (r *Router) handleImage(w http.ResponseWriter, req *http.Request) {
	ref := strings.TrimPrefix(chi.URLParam(req, "*"), "/")
	if ref == "" {
		http.NotFound(w, req)
		return
	}
	r.d.Images.ServeImage(w, req, ref)
}

func decodeBody(req *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, 64<<10))
	if err := dec.Decode(dst); err != nil {
		return apperrors.Input(apperrors.CodeInvalidArgument, "invalid JSON body")
	}
	return nil
}
