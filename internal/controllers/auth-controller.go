package controllers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gizaguri/notion-memo-gateway/internal/auth"
	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/gizaguri/notion-memo-gateway/internal/notion"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	"github.com/gizaguri/notion-memo-gateway/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AuthController handles the Notion OAuth flow and session token
// verification.
type AuthController struct {
	stateService services.StateService
	userService  services.UserService
	tokenIssuer  *auth.TokenIssuer
	codec        *secrets.Codec
	notionClient *notion.Client
	appScheme    string
}

// NewAuthController creates a new instance of AuthController
func NewAuthController(stateService services.StateService, userService services.UserService, tokenIssuer *auth.TokenIssuer, codec *secrets.Codec, notionClient *notion.Client, appScheme string) *AuthController {
	return &AuthController{
		stateService: stateService,
		userService:  userService,
		tokenIssuer:  tokenIssuer,
		codec:        codec,
		notionClient: notionClient,
		appScheme:    appScheme,
	}
}

// Login godoc
// @Summary Start the Notion OAuth flow
// @Description Issues an anti-CSRF state token and redirects to the Notion authorization page
// @Tags auth
// @Success 302
// @Failure 500 {object} map[string]string
// @Router /auth/notion/login [get]
func (ac *AuthController) Login(c *gin.Context) {
	state, err := ac.stateService.Issue()
	if err != nil {
		log.WithError(err).Error("Failed to issue OAuth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start authorization"})
		return
	}

	c.Redirect(http.StatusFound, ac.notionClient.AuthorizeURL(state))
}

// Callback godoc
// @Summary Notion OAuth callback
// @Description Validates the state, exchanges the code, stores encrypted credentials and redirects into the app with a session token
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "Anti-CSRF state token"
// @Success 302
// @Failure 400 {object} map[string]string
// @Router /auth/notion/callback [get]
func (ac *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code or state parameter"})
		return
	}

	if err := ac.stateService.Consume(state); err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			log.WithField("code", models.ErrCodeInvalidState).Warn("Rejected OAuth callback with unknown state")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired state parameter"})
			return
		}
		log.WithError(err).Error("State lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate state"})
		return
	}

	token, err := ac.notionClient.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		log.WithError(err).WithField("code", models.ErrCodeExchangeFailed).Warn("Token exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to obtain token"})
		return
	}

	encryptedAccess, err := ac.codec.Encrypt(token.AccessToken)
	if err != nil {
		log.WithError(err).Error("Failed to encrypt access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
		return
	}

	var encryptedRefresh *string
	if token.RefreshToken != "" {
		encrypted, err := ac.codec.Encrypt(token.RefreshToken)
		if err != nil {
			log.WithError(err).Error("Failed to encrypt refresh token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
			return
		}
		encryptedRefresh = &encrypted
	}

	if err := ac.userService.Upsert(token.UserID(), encryptedAccess, encryptedRefresh, token.WorkspaceName); err != nil {
		log.WithError(err).Error("Failed to persist credentials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
		return
	}

	sessionToken, err := ac.tokenIssuer.Issue(token.UserID())
	if err != nil {
		log.WithError(err).Error("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
		return
	}

	log.WithFields(log.Fields{
		"user_id":   token.UserID(),
		"workspace": token.WorkspaceName,
	}).Info("OAuth authorization completed")

	// Hand off into the mobile app; the raw Notion tokens never leave the
	// server, only the short-lived session token does.
	c.Redirect(http.StatusFound, ac.appScheme+"://auth-success?token="+url.QueryEscape(sessionToken))
}

// Verify godoc
// @Summary Verify a session token
// @Description Checks signature and expiry of a session token and returns the verified user identity
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object true "Token payload"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/verify [post]
func (ac *AuthController) Verify(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	identity, err := ac.tokenIssuer.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": identity})
}
