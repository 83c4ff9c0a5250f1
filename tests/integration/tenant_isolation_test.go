// Package integration provides integration testing for the SalonSuite backend API.
// This file verifies that stock data never leaks across tenant boundaries.
package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantIsolation_StockLevels(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ts := NewStockTestServer(t)
	salonA := uuid.New()
	salonB := uuid.New()

	// Both salons track the same product ID with different quantities
	sharedItem := uuid.New()
	for _, reg := range []struct {
		tenant  uuid.UUID
		initial string
	}{
		{salonA, "40"},
		{salonB, "7"},
	} {
		w := ts.Request("POST", "/api/v1/stock/items", map[string]any{
			"item_id":          sharedItem.String(),
			"initial_quantity": reg.initial,
		}, reg.tenant)
		require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())
	}

	t.Run("Each tenant sees its own quantity", func(t *testing.T) {
		w := ts.Request("GET", "/api/v1/stock/levels/"+sharedItem.String(), nil, salonA)
		require.Equal(t, http.StatusOK, w.Code)
		assertQuantity(t, "40", responseData(t, w)["quantity"])

		w = ts.Request("GET", "/api/v1/stock/levels/"+sharedItem.String(), nil, salonB)
		require.Equal(t, http.StatusOK, w.Code)
		assertQuantity(t, "7", responseData(t, w)["quantity"])
	})

	t.Run("Usage in one tenant leaves the other untouched", func(t *testing.T) {
		w := ts.Request("POST", "/api/v1/stock/usage", map[string]any{
			"item_id": sharedItem.String(),
			"amount":  "15",
		}, salonA)
		require.Equal(t, http.StatusOK, w.Code)
		assertQuantity(t, "25", responseData(t, w)["new_quantity"])

		w = ts.Request("GET", "/api/v1/stock/levels/"+sharedItem.String(), nil, salonB)
		require.Equal(t, http.StatusOK, w.Code)
		assertQuantity(t, "7", responseData(t, w)["quantity"])
	})

	t.Run("Item tracked by one tenant is invisible to another", func(t *testing.T) {
		privateItem := uuid.New()
		w := ts.Request("POST", "/api/v1/stock/items", map[string]any{
			"item_id":          privateItem.String(),
			"initial_quantity": "10",
		}, salonA)
		require.Equal(t, http.StatusCreated, w.Code)

		w = ts.Request("GET", "/api/v1/stock/levels/"+privateItem.String(), nil, salonB)
		require.Equal(t, http.StatusNotFound, w.Code)
		assertErrorCode(t, w, "NOT_FOUND")

		w = ts.Request("POST", "/api/v1/stock/usage", map[string]any{
			"item_id": privateItem.String(),
			"amount":  "1",
		}, salonB)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Level lists are scoped to the requesting tenant", func(t *testing.T) {
		w := ts.Request("GET", "/api/v1/stock/levels", nil, salonB)
		require.Equal(t, http.StatusOK, w.Code)

		response := parseResponse(t, w)
		levels := response["data"].([]any)
		require.Len(t, levels, 1)
		assert.Equal(t, salonB.String(), levels[0].(map[string]any)["tenant_id"])
	})

	t.Run("Usage history is scoped to the requesting tenant", func(t *testing.T) {
		w := ts.Request("GET", "/api/v1/stock/usage?item_id="+sharedItem.String(), nil, salonB)
		require.Equal(t, http.StatusOK, w.Code)

		response := parseResponse(t, w)
		events := response["data"].([]any)
		// Only salon B's initial stock entry, none of salon A's activity
		require.Len(t, events, 1)
		assert.Equal(t, salonB.String(), events[0].(map[string]any)["tenant_id"])
	})

	t.Run("Reconcile only touches the requesting tenant", func(t *testing.T) {
		w := ts.Request("POST", "/api/v1/stock/reconcile/"+sharedItem.String(), nil, salonB)
		require.Equal(t, http.StatusOK, w.Code)

		data := responseData(t, w)
		assert.Equal(t, false, data["adjusted"])
		assertQuantity(t, "7", data["reconciled_quantity"])

		// Salon A's post-usage quantity is unchanged
		w = ts.Request("GET", "/api/v1/stock/levels/"+sharedItem.String(), nil, salonA)
		require.Equal(t, http.StatusOK, w.Code)
		assertQuantity(t, "25", responseData(t, w)["quantity"])
	})
}
