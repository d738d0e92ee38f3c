package server

import (
	"net/http"
	"strings"

	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/util"
)

// HeaderIdempotencyKey lets clients retry an order submission safely.
const HeaderIdempotencyKey = "Idempotency-Key"

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in order.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	in.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if p := scope.Principal; p != nil && p.Role == auth.RoleCustomer {
		userID := p.UserID
		in.CustomerID = &userID
	}

	o, err := s.cfg.Orders.Create(ctx, scope.TenantID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/t/"+r.PathValue("tenant")+"/orders/track/"+o.OrderNumber)
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermOrdersRead)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	page, err := s.cfg.Orders.List(ctx, scope.TenantID, order.ListFilter{
		Status: models.OrderStatus(strings.ToUpper(q.Get("status"))),
		Type:   models.OrderType(strings.ToUpper(q.Get("type"))),
		Skip:   util.CoerceInt(q.Get("skip"), 0),
		Take:   util.CoerceInt(q.Get("take"), order.DefaultPageSize),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermOrdersRead)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.cfg.Orders.Get(ctx, scope.TenantID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// trackOrder is the public lookup behind customer tracking links; the order
// number is the only credential.
func (s *Server) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.cfg.Orders.GetByNumber(ctx, scope.TenantID, r.PathValue("number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) advanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermOrdersWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in order.AdvanceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.cfg.Orders.AdvanceStatus(ctx, scope.TenantID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, scope, err := s.scope(r, auth.PermOrdersWrite)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.cfg.Orders.Cancel(ctx, scope.TenantID, id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
