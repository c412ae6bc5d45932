package notion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("client-id", "client-secret", "https://gateway.example/auth/notion/callback")
	client.BaseURL = server.URL
	return client
}

func TestExchangeCode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/oauth/token", r.URL.Path)

		// HTTP Basic with the application credentials
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
		require.Equal(t, expected, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "authorization_code", body["grant_type"])
		assert.Equal(t, "abc123", body["code"])
		assert.Equal(t, "https://gateway.example/auth/notion/callback", body["redirect_uri"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":   "ntn_secret_token",
			"refresh_token":  "ntn_refresh_token",
			"workspace_name": "My Workspace",
			"owner": map[string]interface{}{
				"type": "user",
				"user": map[string]string{"id": "user-1", "name": "Giza"},
			},
		})
	}))

	token, err := client.ExchangeCode(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ntn_secret_token", token.AccessToken)
	assert.Equal(t, "ntn_refresh_token", token.RefreshToken)
	assert.Equal(t, "My Workspace", token.WorkspaceName)
	assert.Equal(t, "user-1", token.UserID())
}

func TestExchangeCodeRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))

	_, err := client.ExchangeCode(context.Background(), "expired-code")
	assert.ErrorIs(t, err, models.ErrAuthExchangeFailed)
}

func TestExchangeCodeWithoutIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but no owner/user id: still not a usable pair
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "ntn_secret_token"})
	}))

	_, err := client.ExchangeCode(context.Background(), "abc123")
	assert.ErrorIs(t, err, models.ErrAuthExchangeFailed)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/search", r.URL.Path)
		require.Equal(t, "Bearer ntn_secret_token", r.Header.Get("Authorization"))
		require.Equal(t, apiVersion, r.Header.Get("Notion-Version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(10), body["page_size"])
		assert.Equal(t, map[string]interface{}{"property": "object", "value": "page"}, body["filter"])

		json.NewEncoder(w).Encode(map[string]interface{}{"results": []string{}})
	}))

	raw, err := client.Search(context.Background(), "ntn_secret_token", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(raw))
}

func TestBlockChildrenUpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"object":"error","status":404}`, http.StatusNotFound)
	}))

	_, err := client.BlockChildren(context.Background(), "ntn_secret_token", "page-1")
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestAppendParagraph(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/v1/blocks/page-1/children", r.URL.Path)

		var body struct {
			Children []struct {
				Type      string `json:"type"`
				Paragraph struct {
					RichText []struct {
						Text struct {
							Content string `json:"content"`
						} `json:"text"`
					} `json:"rich_text"`
				} `json:"paragraph"`
			} `json:"children"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Children, 1)
		assert.Equal(t, "paragraph", body.Children[0].Type)
		require.Len(t, body.Children[0].Paragraph.RichText, 1)
		assert.Equal(t, "hello memo", body.Children[0].Paragraph.RichText[0].Text.Content)

		json.NewEncoder(w).Encode(map[string]interface{}{"object": "list"})
	}))

	raw, err := client.AppendParagraph(context.Background(), "ntn_secret_token", "page-1", "hello memo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"object":"list"}`, string(raw))
}
