package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/service/tokens"
)

// TokenHandlers provides HTTP handlers for token endpoints.
type TokenHandlers struct {
	tokens *tokens.Service
	log    *zerolog.Logger
}

// NewTokenHandlers creates a new token handlers instance.
func NewTokenHandlers(tokenService *tokens.Service, logger *zerolog.Logger) *TokenHandlers {
	return &TokenHandlers{
		tokens: tokenService,
		log:    logger,
	}
}

// CreateTokenRequest represents the create token request body.
type CreateTokenRequest struct {
	MapID    string  `json:"mapId" binding:"required"`
	Name     string  `json:"name" binding:"required,min=1,max=64"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ImageURL string  `json:"imageUrl"`
}

// CreateToken places a new token on a map.
// POST /api/tokens
func (h *TokenHandlers) CreateToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	t, err := h.tokens.CreateToken(c.Request.Context(), req.MapID, userID, req.Name, req.X, req.Y, req.ImageURL)
	if err != nil {
		writeGatewayError(c, h.log, err, "failed to create token")
		return
	}

	c.JSON(http.StatusCreated, tokenPayload(t))
}

// ListTokens lists the tokens on a map.
// GET /api/maps/:id/tokens
func (h *TokenHandlers) ListTokens(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.tokens.ListTokensForMap(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeGatewayError(c, h.log, err, "failed to list tokens")
		return
	}

	response := make([]any, 0, len(list))
	for _, t := range list {
		response = append(response, tokenPayload(t))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteToken removes a token from its map.
// DELETE /api/tokens/:id
func (h *TokenHandlers) DeleteToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.tokens.DeleteToken(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeGatewayError(c, h.log, err, "failed to delete token")
		return
	}
	c.Status(http.StatusNoContent)
}
