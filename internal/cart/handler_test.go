package cart

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

func TestHandler(t *testing.T) {
	svc, _ := newTestService()
	handler := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	actor := domain.Actor{UserID: 10}

	do := func(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/cart", strings.NewReader(body))
		req = req.WithContext(auth.WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	t.Run("add defaults quantity to one", func(t *testing.T) {
		rec := do(handler.HandleAdd, http.MethodPost, `{"product_id": 1}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(handler.HandleList, http.MethodGet, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var c domain.Cart
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
		require.Len(t, c.Lines, 1)
		assert.Equal(t, 1, c.Lines[0].Quantity)
	})

	t.Run("add beyond stock conflicts", func(t *testing.T) {
		rec := do(handler.HandleAdd, http.MethodPost, `{"product_id": 2, "quantity": 5}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("add unknown product", func(t *testing.T) {
		rec := do(handler.HandleAdd, http.MethodPost, `{"product_id": 42}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("remove missing line", func(t *testing.T) {
		rec := do(handler.HandleRemove, http.MethodPost, `{"product_id": 2}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(handler.HandleAdd, http.MethodPost, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
