package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/menu"
)

// menuCacheControl lets clients and proxies store menu reads but forces a
// revalidation on every use, so a write is visible to the next read.
const menuCacheControl = "no-cache"

// writeMenuJSON writes a menu read with a content hash ETag and answers a
// matching If-None-Match with 304.
func writeMenuJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	w.Header().Set("Cache-Control", menuCacheControl)
	w.Header().Set("Vary", "X-Tenant-ID")
	w.Header().Set("ETag", etag)

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func etagMatches(header, etag string) bool {
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) getMenu(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var categoryID *uuid.UUID
	if v := r.URL.Query().Get("categoryId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: categoryId must be a uuid", errBadRequest))
			return
		}
		categoryID = &id
	}

	items, err := s.cfg.MenuCache.Items(ctx, scope.TenantID, categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMenuJSON(w, r, map[string]any{"items": items})
}

func (s *Server) getFullMenu(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	categories, err := s.cfg.MenuCache.FullMenu(ctx, scope.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMenuJSON(w, r, map[string]any{"categories": categories})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	categories, err := s.cfg.MenuCache.Categories(ctx, scope.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMenuJSON(w, r, map[string]any{"categories": categories})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in menu.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.cfg.Menus.CreateCategory(ctx, scope.TenantID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in menu.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.cfg.Menus.UpdateCategory(ctx, scope.TenantID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cfg.Menus.DeleteCategory(ctx, scope.TenantID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in menu.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.cfg.Menus.CreateItem(ctx, scope.TenantID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in menu.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.cfg.Menus.UpdateItem(ctx, scope.TenantID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cfg.Menus.DeleteItem(ctx, scope.TenantID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermMenuWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cfg.Menus.SetAvailability(ctx, scope.TenantID, id, req.Available); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
