package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
)

// MovementStore defines the database methods needed by movement handlers.
type MovementStore interface {
	ListStockMovements(ctx context.Context, arg database.ListStockMovementsParams) ([]database.StockMovement, error)
}

// MovementHandler exposes the append-only stock movement log.
type MovementHandler struct {
	store MovementStore
}

func NewMovementHandler(store MovementStore) *MovementHandler {
	return &MovementHandler{store: store}
}

// RegisterRoutes registers movement endpoints. Mounted at
// /companies/{cid}/stock-movements.
func (h *MovementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type movementResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	Type           string     `json:"type"`
	Qty            int32      `json:"qty"`
	OrderID        *uuid.UUID `json:"order_id"`
	CentralOrderID *uuid.UUID `json:"central_order_id"`
	Notes          *string    `json:"notes"`
	UserID         uuid.UUID  `json:"user_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

func dbMovementToResponse(m database.StockMovement) movementResponse {
	var notes *string
	if m.Notes.Valid {
		notes = &m.Notes.String
	}
	return movementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Type:           m.Type,
		Qty:            m.Qty,
		OrderID:        uuidOrNil(m.OrderID),
		CentralOrderID: uuidOrNil(m.CentralOrderID),
		Notes:          notes,
		UserID:         m.UserID,
		CreatedAt:      m.CreatedAt,
	}
}

func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	productID := pgtype.UUID{}
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		productID = pgtype.UUID{Bytes: id, Valid: true}
	}
	from, to, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	limit, offset := parsePagination(r)
	movements, err := h.store.ListStockMovements(r.Context(), database.ListStockMovementsParams{
		CompanyID: companyID,
		ProductID: productID,
		Type:      optionalText(r.URL.Query().Get("type")),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list stock movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = dbMovementToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}
