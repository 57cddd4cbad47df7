package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository/memory"
	"github.com/flicky/qbcart/internal/service"
)

const testSecret = "test-secret"

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *model.User, model.Action, string, string) {}

type nopNotifier struct{}

func (nopNotifier) SendConfirmation(context.Context, uuid.UUID, []uuid.UUID) {}

type apiResponse struct {
	Data   json.RawMessage `json:"data"`
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
}

type testAPI struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
}

func newTestAPI(t *testing.T, checks map[string]Pinger) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	auth := service.NewAuthService(store.Users(), testSecret, time.Hour)
	products := service.NewProductService(store, nil, nopRecorder{})
	carts := service.NewCartService(store, nopRecorder{}, log)
	orders := service.NewOrderService(store, nopRecorder{}, nopNotifier{}, log)
	admin := service.NewAdminService(store, func(string) error { return nil })

	router := NewRouter(Handlers{
		Auth:    NewAuthHandler(auth),
		Product: NewProductHandler(products),
		Cart:    NewCartHandler(carts, store.Products()),
		Order:   NewOrderHandler(orders),
		Admin:   NewAdminHandler(admin),
		Health:  NewHealthHandler(checks),
	}, testSecret, "qbcart-test", log)

	return &testAPI{t: t, store: store, router: router}
}

func (a *testAPI) do(method, path, token string, body any) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

// register creates a user and returns a token for it.
func (a *testAPI) register(username string, role model.Role) (string, uuid.UUID) {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username, "password": "password123", "role": role,
	})
	require.Equal(a.t, http.StatusCreated, code, string(resp.Error))

	var auth struct {
		Token string `json:"token"`
		User  struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &auth))
	return auth.Token, auth.User.ID
}

func (a *testAPI) promote(id uuid.UUID, username string) string {
	a.t.Helper()
	ctx := context.Background()
	u, err := a.store.Users().GetByID(ctx, id)
	require.NoError(a.t, err)
	u.IsAdmin = true
	require.NoError(a.t, a.store.Users().Update(ctx, u))

	code, resp := a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "password123"})
	require.Equal(a.t, http.StatusOK, code)
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &auth))
	return auth.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRegister_ValidationErrors(t *testing.T) {
	api := newTestAPI(t, nil)

	code, resp := api.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "fail", resp.Status)

	fields := decode[map[string]string](t, resp.Error)
	assert.Equal(t, "this field is required", fields["username"])
	assert.Equal(t, "must be at least 8", fields["password"])
}

func TestLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t, nil)
	api.register("alice", model.RoleBuyer)

	code, resp := api.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "fail", resp.Status)
}

func TestCartAndOrderFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	sellerToken, _ := api.register("sam", model.RoleSeller)
	buyerToken, _ := api.register("bob", model.RoleBuyer)

	code, resp := api.do(http.MethodPost, "/api/v1/products", sellerToken, gin.H{
		"name": "Kettle", "cost": "10", "stock": 3, "category": 3,
	})
	require.Equal(t, http.StatusCreated, code, string(resp.Error))
	product := decode[struct {
		ID uuid.UUID `json:"id"`
	}](t, resp.Data)

	code, resp = api.do(http.MethodPost, "/api/v1/cart", buyerToken, gin.H{"product_id": product.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, code)
	added := decode[struct {
		Outcome string `json:"outcome"`
		Line    struct {
			ID      uuid.UUID `json:"id"`
			Version int       `json:"version"`
		} `json:"line"`
	}](t, resp.Data)
	assert.Equal(t, "applied", added.Outcome)

	code, resp = api.do(http.MethodPut, "/api/v1/cart/"+added.Line.ID.String(), buyerToken, gin.H{"quantity": 5, "version": added.Line.Version + 7})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "fail", resp.Status)

	code, resp = api.do(http.MethodPost, "/api/v1/orders/checkout", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	checkout := decode[struct {
		Outcome string `json:"outcome"`
		Orders  []struct {
			ProductName string `json:"product_name"`
			Price       string `json:"price"`
			Quantity    int    `json:"quantity"`
		} `json:"orders"`
	}](t, resp.Data)
	assert.Equal(t, "applied", checkout.Outcome)
	require.Len(t, checkout.Orders, 1)
	assert.Equal(t, "Kettle", checkout.Orders[0].ProductName)
	assert.Equal(t, "30", checkout.Orders[0].Price)

	code, resp = api.do(http.MethodPost, "/api/v1/orders/deliver", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "applied", decode[struct {
		Outcome string `json:"outcome"`
	}](t, resp.Data).Outcome)

	code, resp = api.do(http.MethodPost, "/api/v1/orders/deliver", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_found", decode[struct {
		Outcome string `json:"outcome"`
	}](t, resp.Data).Outcome)
}

func TestCart_UnknownProductIsNotFoundOutcome(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.register("bob", model.RoleBuyer)

	code, resp := api.do(http.MethodPost, "/api/v1/cart", token, gin.H{"product_id": uuid.New()})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "not_found", decode[struct {
		Outcome string `json:"outcome"`
	}](t, resp.Data).Outcome)
}

func TestProducts_BuyerCannotCreate(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.register("bob", model.RoleBuyer)

	code, _ := api.do(http.MethodPost, "/api/v1/products", token, gin.H{"name": "x", "cost": "1", "category": 1})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestProducts_InvalidID(t *testing.T) {
	api := newTestAPI(t, nil)

	code, resp := api.do(http.MethodGet, "/api/v1/products/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be a valid id", decode[map[string]string](t, resp.Error)["id"])

	code, _ = api.do(http.MethodGet, "/api/v1/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdmin_RequiresAdminClaim(t *testing.T) {
	api := newTestAPI(t, nil)
	token, id := api.register("root", model.RoleBuyer)

	code, _ := api.do(http.MethodGet, "/api/v1/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, "/api/v1/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	adminToken := api.promote(id, "root")
	code, resp := api.do(http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	users := decode[[]struct {
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	}](t, resp.Data)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)
}

func TestReadyz(t *testing.T) {
	api := newTestAPI(t, map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["postgres"])
	assert.Equal(t, "unavailable", body["redis"])
}
