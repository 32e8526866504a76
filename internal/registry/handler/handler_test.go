package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	caphandler "subvault/internal/capability/handler"
	capservice "subvault/internal/capability/service"
	capstore "subvault/internal/capability/store"
	"subvault/internal/jwttoken"
	"subvault/internal/registry/service"
	"subvault/internal/registry/store"
	id "subvault/pkg/domain"
)

// testEnv wires the full HTTP surface: real services over in-memory stores,
// real JWT validation, both handlers on one router.
type testEnv struct {
	router *chi.Mux
	jwt    *jwttoken.JWTService
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		jwt: jwttoken.NewJWTService("test-signing-key", "subvault-test"),
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := jwttoken.NewJWTServiceAdapter(env.jwt)

	authority := capservice.New(capstore.NewInMemory(),
		capservice.WithClock(clock),
		capservice.WithLogger(logger),
	)
	registry := service.New(store.NewInMemorySubscriptionStore(), store.NewInMemoryGrantStore(), authority,
		service.WithClock(clock),
		service.WithLogger(logger),
	)

	env.router = chi.NewRouter()
	caphandler.New(authority, env.jwt, logger, nil, validator).Register(env.router)
	New(registry, env.jwt, logger, nil, validator).Register(env.router)
	return env
}

func (e *testEnv) identityToken(t *testing.T, principal string) string {
	t.Helper()
	token, err := e.jwt.GenerateIdentityToken(id.Principal(principal), time.Hour)
	require.NoError(t, err)
	return token
}

// do issues a request through the full router. A non-empty capToken is sent
// in the capability header.
func (e *testEnv) do(t *testing.T, method, path, bearer, capToken string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if capToken != "" {
		req.Header.Set(CapabilityHeader, capToken)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type creatorFixture struct {
	accountID string
	capToken  string
	bearer    string
}

func (e *testEnv) newCreator(t *testing.T, principal string) creatorFixture {
	t.Helper()

	bearer := e.identityToken(t, principal)
	w := e.do(t, http.MethodPost, "/creators", bearer, "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
		CapabilityToken string `json:"capability_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.CapabilityToken)

	return creatorFixture{accountID: resp.Account.ID, capToken: resp.CapabilityToken, bearer: bearer}
}

func (e *testEnv) createSubscription(t *testing.T, c creatorFixture, name string, price uint64, durationMs int64, content string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/accounts/"+c.accountID+"/subscriptions", c.bearer, c.capToken, map[string]any{
		"name":        name,
		"description": "test offering",
		"price":       price,
		"duration_ms": durationMs,
		"content":     content,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateCreatorRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/creators", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetAccountIsPublic(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")

	w := env.do(t, http.MethodGet, "/creators/"+creator.accountID, "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var account map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, "alice", account["creator"])
}

func TestCreateSubscription(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")

	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")

	// Duplicate name conflicts
	w := env.do(t, http.MethodPost, "/accounts/"+creator.accountID+"/subscriptions", creator.bearer, creator.capToken, map[string]any{
		"name": "premium", "price": 1, "duration_ms": 1000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateSubscriptionRejectsMissingCapability(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")

	w := env.do(t, http.MethodPost, "/accounts/"+creator.accountID+"/subscriptions", creator.bearer, "", map[string]any{
		"name": "premium", "price": 100, "duration_ms": 60_000,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSubscriptionRejectsForeignCapability(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newCreator(t, "alice")
	mallory := env.newCreator(t, "mallory")

	w := env.do(t, http.MethodPost, "/accounts/"+alice.accountID+"/subscriptions", mallory.bearer, mallory.capToken, map[string]any{
		"name": "premium", "price": 100, "duration_ms": 60_000,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSubscriptionInvalidDuration(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")

	w := env.do(t, http.MethodPost, "/accounts/"+creator.accountID+"/subscriptions", creator.bearer, creator.capToken, map[string]any{
		"name": "premium", "price": 100, "duration_ms": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSubscriptionsIsPublicAndOmitsContent(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")

	w := env.do(t, http.MethodGet, "/accounts/"+creator.accountID+"/subscriptions", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var subs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "premium", subs[0]["name"])
	assert.NotContains(t, w.Body.String(), "secret", "listing must not leak content")
}

func TestPurchaseAndAccessFlow(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")
	bob := env.identityToken(t, "bob")
	base := "/accounts/" + creator.accountID + "/subscriptions/premium"

	// Wrong amount is rejected and grants nothing
	w := env.do(t, http.MethodPost, base+"/purchase", bob, "", purchaseRequest{Amount: 99})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Exact payment buys access
	w = env.do(t, http.MethodPost, base+"/purchase", bob, "", purchaseRequest{Amount: 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp contentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "secret", resp.Content)

	// Access lapses with time
	env.now = env.now.Add(2 * time.Minute)
	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNonSubscriberGetsNotFound(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")
	eve := env.identityToken(t, "eve")

	wGrantless := env.do(t, http.MethodGet, "/accounts/"+creator.accountID+"/subscriptions/premium/content", eve, "", nil)
	wMissing := env.do(t, http.MethodGet, "/accounts/"+creator.accountID+"/subscriptions/ghost/content", eve, "", nil)

	assert.Equal(t, http.StatusNotFound, wGrantless.Code)
	assert.Equal(t, http.StatusNotFound, wMissing.Code)
	assert.JSONEq(t, wMissing.Body.String(), wGrantless.Body.String(), "responses must be indistinguishable")
}

func TestUpdateContent(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "v1")
	bob := env.identityToken(t, "bob")
	base := "/accounts/" + creator.accountID + "/subscriptions/premium"

	w := env.do(t, http.MethodPost, base+"/purchase", bob, "", purchaseRequest{Amount: 100})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPut, base+"/content", creator.bearer, creator.capToken, contentResponse{Content: "v2"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp contentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "v2", resp.Content)
}

func TestCancelSubscription(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")
	bob := env.identityToken(t, "bob")
	base := "/accounts/" + creator.accountID + "/subscriptions/premium"

	w := env.do(t, http.MethodPost, base+"/purchase", bob, "", purchaseRequest{Amount: 100})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodDelete, base, creator.bearer, creator.capToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "cancellation revokes outstanding grants")
}

func TestUnsubscribe(t *testing.T) {
	env := newTestEnv(t)
	creator := env.newCreator(t, "alice")
	env.createSubscription(t, creator, "premium", 100, 60_000, "secret")
	bob := env.identityToken(t, "bob")
	base := "/accounts/" + creator.accountID + "/subscriptions/premium"

	w := env.do(t, http.MethodPost, base+"/purchase", bob, "", purchaseRequest{Amount: 100})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodDelete, base+"/grant", bob, "", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, base+"/content", bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidAccountIDRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/accounts/not-a-uuid/subscriptions", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
