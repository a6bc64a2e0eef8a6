//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tokoline/sales-api/internal/config"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/router"
	"github.com/tokoline/sales-api/internal/service"
	"github.com/tokoline/sales-api/internal/store"
	"github.com/tokoline/sales-api/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow drives the order lifecycle through the HTTP API against
// a real PostgreSQL database.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr := setupPostgresContainer(t, ctx)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, store.Migrate(ctx, pool))

	cfg := &config.Config{
		Port:               "8081",
		DatabaseURL:        connStr,
		JWTSecret:          "integration-test-secret",
		SequenceBackend:    config.SequencePostgres,
		AdminEditAnyStatus: true,
	}
	hub := ws.NewHub(zap.NewNop())
	go hub.Run(ctx)

	server := httptest.NewServer(router.New(cfg, pool, service.PostgresSequencer{}, hub, zap.NewNop()))
	defer server.Close()

	// --- 1. Bootstrap users directly ---
	createUser(t, ctx, pool, "Admin", "admin@test.id", enum.RoleAdmin)
	createUser(t, ctx, pool, "Manajer", "manager@test.id", enum.RoleManager)
	createUser(t, ctx, pool, "Budi", "sales@test.id", enum.RoleSales)

	adminToken := login(t, server, "admin@test.id")
	managerToken := login(t, server, "manager@test.id")
	salesToken := login(t, server, "sales@test.id")

	// --- 2. Admin creates a product; sales may not ---
	status, product := call(t, server, http.MethodPost, "/products", adminToken, map[string]any{
		"sku":  "KPI-200",
		"name": "Kopi Bubuk 200g",
		"prices": map[string]string{
			"grosir": "10000", "semiGrosir": "11000", "retail": "12000", "modern": "12500",
		},
	})
	require.Equal(t, http.StatusCreated, status, "%v", product)
	productID := product["id"].(string)

	status, _ = call(t, server, http.MethodPost, "/products", salesToken, map[string]any{"sku": "X"})
	assert.Equal(t, http.StatusForbidden, status)

	// --- 3. Sales logs a visit ---
	status, visit := call(t, server, http.MethodPost, "/visits", salesToken, map[string]any{
		"storeName": "Toko Makmur",
	})
	require.Equal(t, http.StatusCreated, status, "%v", visit)
	visitID := visit["id"].(string)

	// --- 4. Sales creates an order against the visit ---
	status, created := call(t, server, http.MethodPost, "/orders", salesToken, map[string]any{
		"visitId": visitID,
		"items": []map[string]any{{
			"productId": productID,
			"quantity":  3,
			"priceType": "RETAIL",
			"discount":  map[string]string{"type": "PERCENTAGE", "value": "10"},
		}},
		"discount": map[string]string{"type": "FIXED", "value": "400"},
	})
	require.Equal(t, http.StatusCreated, status, "%v", created)
	orderID := created["id"].(string)

	// 12000 x 3 = 36000, less 10% = 32400, less 400 = 32000
	assert.Equal(t, "32400.00", created["subtotal"])
	assert.Equal(t, "32000.00", created["total"])
	assert.Equal(t, "DRAFT", created["status"])
	assert.Regexp(t, `^PO-\d{8}-001$`, created["orderNumber"])

	// A second order the same day takes the next number.
	status, second := call(t, server, http.MethodPost, "/orders", salesToken, map[string]any{
		"visitId": visitID,
		"items":   []map[string]any{{"productId": productID, "quantity": 1, "priceType": "GROSIR"}},
	})
	require.Equal(t, http.StatusCreated, status, "%v", second)
	assert.Regexp(t, `^PO-\d{8}-002$`, second["orderNumber"])

	// --- 5. Validation failures come back as 422 with violations ---
	status, bad := call(t, server, http.MethodPost, "/orders", salesToken, map[string]any{
		"visitId": visitID,
		"items": []map[string]any{{
			"productId": productID, "quantity": 1, "priceType": "CUSTOM", "customPrice": "9000",
		}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotEmpty(t, bad["violations"])

	// --- 6. Sales cannot approve; manager can ---
	status, _ = call(t, server, http.MethodPatch, "/orders/"+orderID+"/status", salesToken, map[string]any{
		"expectedStatus": "DRAFT", "status": "DISETUJUI",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, approved := call(t, server, http.MethodPatch, "/orders/"+orderID+"/status", managerToken, map[string]any{
		"expectedStatus": "DRAFT", "status": "DISETUJUI",
	})
	require.Equal(t, http.StatusOK, status, "%v", approved)
	assert.Equal(t, "DISETUJUI", approved["status"])
	assert.NotNil(t, approved["approvedBy"])

	// --- 7. A second approval based on the old status is stale ---
	status, stale := call(t, server, http.MethodPatch, "/orders/"+orderID+"/status", managerToken, map[string]any{
		"expectedStatus": "DRAFT", "status": "DISETUJUI",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DISETUJUI", stale["currentStatus"])

	// --- 8. Deliver; the order is then terminal ---
	status, delivered := call(t, server, http.MethodPatch, "/orders/"+orderID+"/status", managerToken, map[string]any{
		"expectedStatus": "DISETUJUI", "status": "TERKIRIM",
	})
	require.Equal(t, http.StatusOK, status, "%v", delivered)
	assert.NotNil(t, delivered["deliveryDate"])

	status, _ = call(t, server, http.MethodPatch, "/orders/"+orderID+"/status", adminToken, map[string]any{
		"expectedStatus": "TERKIRIM", "status": "TIDAK_TERKIRIM", "rejectionReason": "late",
	})
	assert.Equal(t, http.StatusConflict, status)

	// --- 9. Sales cannot edit outside DRAFT ---
	status, _ = call(t, server, http.MethodPut, "/orders/"+orderID, salesToken, map[string]any{
		"items": []map[string]any{{"productId": productID, "quantity": 1, "priceType": "GROSIR"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// --- 10. History is complete and ordered ---
	status, got := call(t, server, http.MethodGet, "/orders/"+orderID, salesToken, nil)
	require.Equal(t, http.StatusOK, status)
	history := got["history"].([]any)
	require.Len(t, history, 3)
	assert.Equal(t, "TERKIRIM", history[2].(map[string]any)["status"])

	// --- 11. Sales lists only their own orders ---
	status, list := call(t, server, http.MethodGet, "/orders?status=DRAFT", salesToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list["data"].([]any), 1)
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("sales_test"),
		tcpostgres.WithUsername("sales"),
		tcpostgres.WithPassword("sales"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	return connStr
}

func createUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name, email string, role enum.Role) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = store.New(pool).CreateUser(ctx, store.CreateUserParams{
		Name: name, Email: email, HashedPassword: string(hash), Role: role,
	})
	require.NoError(t, err)
}

func login(t *testing.T, server *httptest.Server, email string) string {
	t.Helper()
	status, resp := call(t, server, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, status, "login %s: %v", email, resp)
	return resp["accessToken"].(string)
}

func call(t *testing.T, server *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
