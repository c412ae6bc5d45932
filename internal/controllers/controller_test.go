package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gizaguri/notion-memo-gateway/internal/auth"
	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/gizaguri/notion-memo-gateway/internal/notion"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	"github.com/gizaguri/notion-memo-gateway/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeNotion emulates the slice of the Notion API the gateway talks to and
// counts upstream calls per endpoint.
type fakeNotion struct {
	mu            sync.Mutex
	exchangeCalls int
	searchCalls   int
	childrenCalls int
	appendCalls   int
	failExchange  bool
}

func (f *fakeNotion) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.exchangeCalls++
		fail := f.failExchange
		f.mu.Unlock()
		if fail {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":   "ntn_access_token",
			"refresh_token":  "ntn_refresh_token",
			"workspace_name": "Memo Workspace",
			"owner": map[string]interface{}{
				"type": "user",
				"user": map[string]string{"id": "user-1", "name": "Giza"},
			},
		})
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searchCalls++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"object": "page", "id": "page-1"}},
		})
	})
	mux.HandleFunc("/v1/blocks/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if r.Method == http.MethodPatch {
			f.appendCalls++
		} else {
			f.childrenCalls++
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"type": "paragraph"}},
		})
	})
	return mux
}

func (f *fakeNotion) setFailExchange(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failExchange = fail
}

func (f *fakeNotion) counts() (exchange, search, children, appends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.searchCalls, f.childrenCalls, f.appendCalls
}

type gatewayEnv struct {
	router       *gin.Engine
	db           *gorm.DB
	codec        *secrets.Codec
	tokenIssuer  *auth.TokenIssuer
	stateService services.StateService
	userService  services.UserService
	upstream     *fakeNotion
}

func setupGateway(t *testing.T) *gatewayEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.OAuthState{}, &models.PageCache{}))

	upstream := &fakeNotion{}
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	codec := secrets.NewCodec("e2e-encryption-key")
	tokenIssuer := auth.NewTokenIssuer("e2e-session-secret")
	notionClient := notion.NewClient("client-id", "client-secret", "https://gateway.example/auth/notion/callback")
	notionClient.BaseURL = server.URL

	stateService := services.NewStateService(db)
	userService := services.NewUserService(db)
	pageCache := services.NewPageCacheService(db, userService, codec, notionClient)

	authController := NewAuthController(stateService, userService, tokenIssuer, codec, notionClient, "notionmemo")
	memoController := NewMemoController(userService, pageCache, codec, notionClient)

	router := gin.New()
	router.GET("/auth/notion/login", authController.Login)
	router.GET("/auth/notion/callback", authController.Callback)
	router.POST("/auth/verify", authController.Verify)
	router.GET("/get-pages", memoController.GetPages)
	router.GET("/get-blocks", memoController.GetBlocks)
	router.POST("/add-memo", memoController.AddMemo)

	return &gatewayEnv{
		router:       router,
		db:           db,
		codec:        codec,
		tokenIssuer:  tokenIssuer,
		stateService: stateService,
		userService:  userService,
		upstream:     upstream,
	}
}

func (env *gatewayEnv) request(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *gatewayEnv) seedCredential(t *testing.T, userID string) {
	t.Helper()
	encrypted, err := env.codec.Encrypt("ntn_access_token")
	require.NoError(t, err)
	require.NoError(t, env.userService.Upsert(userID, encrypted, nil, "Memo Workspace"))
}

func TestLoginRedirectsToAuthorizeURL(t *testing.T) {
	env := setupGateway(t)

	w := env.request(t, http.MethodGet, "/auth/notion/login", "")
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/v1/oauth/authorize", location.Path)
	assert.Equal(t, "client-id", location.Query().Get("client_id"))
	assert.Equal(t, "code", location.Query().Get("response_type"))

	// The embedded state was persisted and is consumable exactly once
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.NoError(t, env.stateService.Consume(state))
}

func TestCallbackSuccessThenReplay(t *testing.T) {
	env := setupGateway(t)

	state, err := env.stateService.Issue()
	require.NoError(t, err)

	w := env.request(t, http.MethodGet, "/auth/notion/callback?code=abc&state="+state, "")
	require.Equal(t, http.StatusFound, w.Code)

	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "notionmemo://auth-success?token="), location)

	// The hand-off token verifies to the provider identity
	parsed, err := url.Parse(location)
	require.NoError(t, err)
	identity, err := env.tokenIssuer.Verify(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity)

	// Credentials landed encrypted, never in plaintext
	var user models.User
	require.NoError(t, env.db.Where("notion_user_id = ?", "user-1").First(&user).Error)
	assert.NotEqual(t, "ntn_access_token", user.EncryptedAccessToken)
	decrypted, err := env.codec.Decrypt(user.EncryptedAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ntn_access_token", decrypted)
	require.NotNil(t, user.EncryptedRefreshToken)

	// Replaying the same callback is rejected: the state is spent
	w = env.request(t, http.MethodGet, "/auth/notion/callback?code=abc&state="+state, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired state parameter"}`, w.Body.String())
}

func TestCallbackMissingParams(t *testing.T) {
	env := setupGateway(t)

	for _, target := range []string{
		"/auth/notion/callback",
		"/auth/notion/callback?code=abc",
		"/auth/notion/callback?state=xyz",
	} {
		w := env.request(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	env := setupGateway(t)
	env.upstream.setFailExchange(true)

	state, err := env.stateService.Issue()
	require.NoError(t, err)

	w := env.request(t, http.MethodGet, "/auth/notion/callback?code=bad&state="+state, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Failed to obtain token"}`, w.Body.String())

	// Nothing was persisted for the failed exchange
	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestVerifySessionToken(t *testing.T) {
	env := setupGateway(t)

	token, err := env.tokenIssuer.Issue("user-1")
	require.NoError(t, err)

	w := env.request(t, http.MethodPost, "/auth/verify", `{"token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-1"}`, w.Body.String())

	w = env.request(t, http.MethodPost, "/auth/verify", `{"token":"tampered"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, http.MethodPost, "/auth/verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPages(t *testing.T) {
	env := setupGateway(t)
	env.seedCredential(t, "user-1")

	w := env.request(t, http.MethodGet, "/get-pages?user_id=user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "page-1")

	w = env.request(t, http.MethodGet, "/get-pages", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"User ID is required"}`, w.Body.String())

	w = env.request(t, http.MethodGet, "/get-pages?user_id=nobody", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}

func TestAddMemoUnknownUserSkipsUpstream(t *testing.T) {
	env := setupGateway(t)

	w := env.request(t, http.MethodPost, "/add-memo", `{"user_id":"u1","page_id":"p1","content":"hello"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())

	_, _, _, appends := env.upstream.counts()
	assert.Equal(t, 0, appends, "no upstream call for an unknown user")
}

func TestAddMemoInvalidatesPageCache(t *testing.T) {
	env := setupGateway(t)
	env.seedCredential(t, "user-1")

	// First read fills the cache
	w := env.request(t, http.MethodGet, "/get-blocks?user_id=user-1&page_id=page-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, _, children, _ := env.upstream.counts()
	require.Equal(t, 1, children)

	// Second read within the TTL is served from cache
	w = env.request(t, http.MethodGet, "/get-blocks?user_id=user-1&page_id=page-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, _, children, _ = env.upstream.counts()
	require.Equal(t, 1, children)

	// A write drops the entry
	w = env.request(t, http.MethodPost, "/add-memo", `{"user_id":"user-1","page_id":"page-1","content":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Memo added successfully")
	_, _, _, appends := env.upstream.counts()
	assert.Equal(t, 1, appends)

	var count int64
	require.NoError(t, env.db.Model(&models.PageCache{}).Count(&count).Error)
	require.Equal(t, int64(0), count)

	// The next read is forced back upstream
	w = env.request(t, http.MethodGet, "/get-blocks?user_id=user-1&page_id=page-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, _, children, _ = env.upstream.counts()
	assert.Equal(t, 2, children)
}

func TestGetBlocksMissingParams(t *testing.T) {
	env := setupGateway(t)

	w := env.request(t, http.MethodGet, "/get-blocks?user_id=user-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(t, http.MethodGet, "/get-blocks?page_id=page-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
