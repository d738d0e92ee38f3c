package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
)

func (s *Server) regenerateShareSlug(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermTenantManage)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slug, err := s.cfg.Tenants.RegenerateShareSlug(ctx, scope.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shareSlug": slug})
}

func (s *Server) removeTenant(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermTenantRemove)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cfg.Tenants.Remove(ctx, scope.TenantID); err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(ctx).Info().Stringer("user_id", scope.Principal.UserID).Msg("tenant removed")
	w.WriteHeader(http.StatusNoContent)
}
