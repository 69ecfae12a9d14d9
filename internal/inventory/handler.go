package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/httpx"
)

type StockReader interface {
	ListAll(ctx context.Context) ([]domain.StockLevel, error)
	GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error)
}

type Handler struct {
	repo   StockReader
	logger *slog.Logger
}

func NewHandler(repo StockReader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r.Context()); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	items, err := h.repo.ListAll(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("stock listed", "count", len(items))
	httpx.WriteJSON(w, h.logger, http.StatusOK, items)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r.Context()); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	productID, err := httpx.PathID(r, "productId")
	if err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	stock, err := h.repo.GetStock(r.Context(), productID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("stock retrieved", "product_id", productID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, stock)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := auth.ActorFrom(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}
	if !actor.Admin {
		return domain.ErrForbidden
	}
	return nil
}
