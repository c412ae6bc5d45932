package controllers

import (
	"errors"
	"net/http"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/gizaguri/notion-memo-gateway/internal/notion"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	"github.com/gizaguri/notion-memo-gateway/internal/services"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// MemoController proxies page reads and memo writes to the Notion API using
// the caller's stored credential.
type MemoController struct {
	userService  services.UserService
	pageCache    services.PageCacheService
	codec        *secrets.Codec
	notionClient *notion.Client
}

// NewMemoController creates a new instance of MemoController
func NewMemoController(userService services.UserService, pageCache services.PageCacheService, codec *secrets.Codec, notionClient *notion.Client) *MemoController {
	return &MemoController{
		userService:  userService,
		pageCache:    pageCache,
		codec:        codec,
		notionClient: notionClient,
	}
}

// GetPages godoc
// @Summary List pages shared with the integration
// @Description Proxies a Notion search for pages using the user's stored credential
// @Tags memo
// @Produce json
// @Param user_id query string true "Notion user ID"
// @Param query query string false "Optional title filter"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /get-pages [get]
func (mc *MemoController) GetPages(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	accessToken, ok := mc.loadAccessToken(c, userID)
	if !ok {
		return
	}

	results, err := mc.notionClient.Search(c.Request.Context(), accessToken, c.Query("query"))
	if err != nil {
		log.WithError(err).WithField("code", models.ErrCodeUpstreamFetch).Error("Notion search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pages"})
		return
	}

	c.Data(http.StatusOK, "application/json", results)
}

// GetBlocks godoc
// @Summary Read a page's content blocks
// @Description Serves block children through the stale-while-revalidate page cache
// @Tags memo
// @Produce json
// @Param user_id query string true "Notion user ID"
// @Param page_id query string true "Notion page ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /get-blocks [get]
func (mc *MemoController) GetBlocks(c *gin.Context) {
	userID := c.Query("user_id")
	pageID := c.Query("page_id")
	if userID == "" || pageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID and page ID are required"})
		return
	}

	content, err := mc.pageCache.ReadThrough(c.Request.Context(), pageID, userID)
	if err != nil {
		mc.respondComponentError(c, err, models.ErrCodeUpstreamFetch, "Failed to fetch blocks")
		return
	}

	c.Data(http.StatusOK, "application/json", content)
}

// AddMemo godoc
// @Summary Append a memo to a page
// @Description Appends one paragraph block to the page and invalidates its cache entry
// @Tags memo
// @Accept json
// @Produce json
// @Param request body object true "Memo payload"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /add-memo [post]
func (mc *MemoController) AddMemo(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		PageID  string `json:"page_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, page_id and content are required"})
		return
	}

	accessToken, ok := mc.loadAccessToken(c, req.UserID)
	if !ok {
		return
	}

	data, err := mc.notionClient.AppendParagraph(c.Request.Context(), accessToken, req.PageID, req.Content)
	if err != nil {
		log.WithError(err).WithField("code", models.ErrCodeUpstreamWrite).Error("Memo append failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add memo"})
		return
	}

	// Drop the cached snapshot so the next read sees the new paragraph.
	if err := mc.pageCache.Invalidate(req.PageID); err != nil {
		log.WithError(err).WithField("page_id", req.PageID).Error("Cache invalidation failed after write")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Memo added successfully",
		"data":    data,
	})
}

// loadAccessToken resolves and decrypts the user's stored credential,
// writing the error response itself when that fails.
func (mc *MemoController) loadAccessToken(c *gin.Context, userID string) (string, bool) {
	user, err := mc.userService.Get(userID)
	if err != nil {
		mc.respondComponentError(c, err, models.ErrCodeNotFound, "Failed to load credentials")
		return "", false
	}

	accessToken, err := mc.codec.Decrypt(user.EncryptedAccessToken)
	if err != nil {
		mc.respondComponentError(c, err, models.ErrCodeDecryption, "Failed to load credentials")
		return "", false
	}

	return accessToken, true
}

// respondComponentError maps component-level failures onto HTTP statuses.
// Decryption failures stay distinguishable from not-found: they point at key
// rotation or corrupted storage, not a missing user.
func (mc *MemoController) respondComponentError(c *gin.Context, err error, code, fallback string) {
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, secrets.ErrDecryption):
		log.WithError(err).WithField("code", models.ErrCodeDecryption).Error("Credential decryption failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Credential decryption failed"})
	default:
		log.WithError(err).WithField("code", code).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
