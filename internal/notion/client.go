package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
)

const (
	// DefaultBaseURL is the public Notion API host.
	DefaultBaseURL = "https://api.notion.com"

	// apiVersion pins the Notion-Version header to the stable release the
	// gateway was written against.
	apiVersion = "2022-06-28"
)

// Client is a thin typed wrapper over the Notion REST API. It covers only
// the calls the gateway needs: the OAuth token exchange, page search, block
// children reads, and paragraph appends.
type Client struct {
	// BaseURL can be pointed at a test server; defaults to DefaultBaseURL.
	BaseURL string

	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
}

// NewClient builds a Client with the OAuth application credentials.
func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		BaseURL:      DefaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthorizeURL builds the outbound authorization URL for the OAuth flow,
// binding it to the given anti-CSRF state token.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("owner", "user")
	q.Set("redirect_uri", c.redirectURI)
	q.Set("state", state)
	return c.BaseURL + "/v1/oauth/authorize?" + q.Encode()
}

// TokenResponse is the payload of a successful authorization-code exchange.
type TokenResponse struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	TokenType     string `json:"token_type"`
	BotID         string `json:"bot_id"`
	WorkspaceName string `json:"workspace_name"`
	WorkspaceID   string `json:"workspace_id"`
	Owner         struct {
		Type string `json:"type"`
		User struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	} `json:"owner"`
}

// UserID returns the external user identity carried in the token response.
func (tr *TokenResponse) UserID() string {
	return tr.Owner.User.ID
}

// ExchangeCode trades an authorization code for a token pair. The call is
// authenticated with HTTP Basic client id/secret and must name the exact
// redirect URI used on the authorize leg, or Notion rejects the exchange.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": c.redirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAuthExchangeFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read exchange response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d", models.ErrAuthExchangeFailed, resp.StatusCode)
	}

	var token TokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}
	if token.AccessToken == "" || token.UserID() == "" {
		// No usable identity/token pair; treat like a rejected exchange.
		return nil, models.ErrAuthExchangeFailed
	}
	return &token, nil
}

// Search lists pages shared with the integration. The fixed object filter
// and page size mirror what the mobile client expects.
func (c *Client) Search(ctx context.Context, accessToken, query string) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": 10,
	}
	if query != "" {
		payload["query"] = query
	}
	return c.do(ctx, http.MethodPost, "/v1/search", accessToken, payload)
}

// BlockChildren fetches the child blocks of a page or block.
func (c *Client) BlockChildren(ctx context.Context, accessToken, blockID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/blocks/"+blockID+"/children?page_size=100", accessToken, nil)
}

// AppendParagraph appends one paragraph block with the given text to a page.
func (c *Client) AppendParagraph(ctx context.Context, accessToken, blockID, content string) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"children": []map[string]interface{}{
			{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]interface{}{
					"rich_text": []map[string]interface{}{
						{
							"type": "text",
							"text": map[string]string{"content": content},
						},
					},
				},
			},
		},
	}
	return c.do(ctx, http.MethodPatch, "/v1/blocks/"+blockID+"/children", accessToken, payload)
}

// do issues an authenticated Notion API request and returns the raw JSON
// body. Non-2xx responses map to models.ErrUpstream with status attached.
func (c *Client) do(ctx context.Context, method, path, accessToken string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Notion-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s status=%d", models.ErrUpstream, method, path, resp.StatusCode)
	}

	return json.RawMessage(raw), nil
}
