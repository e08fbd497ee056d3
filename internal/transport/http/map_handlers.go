package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/maps"
)

// MapHandlers provides HTTP handlers for map endpoints. Mutations done
// here raise domain events that reach live sessions through the gateway.
type MapHandlers struct {
	maps *maps.Service
	log  *zerolog.Logger
}

// NewMapHandlers creates a new map handlers instance.
func NewMapHandlers(mapService *maps.Service, logger *zerolog.Logger) *MapHandlers {
	return &MapHandlers{
		maps: mapService,
		log:  logger,
	}
}

// CreateMapRequest represents the create map request body.
type CreateMapRequest struct {
	RoomID        string `json:"roomId" binding:"required"`
	Name          string `json:"name" binding:"required,min=1,max=64"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	BackgroundURL string `json:"backgroundUrl"`
}

// CreateMap handles map creation inside a room.
// POST /api/maps
func (h *MapHandlers) CreateMap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create map request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	m, err := h.maps.CreateMap(c.Request.Context(), req.RoomID, userID, req.Name, req.Width, req.Height, req.BackgroundURL)
	if err != nil {
		writeGatewayError(c, h.log, err, "failed to create map")
		return
	}

	c.JSON(http.StatusCreated, mapPayload(m))
}

// GetMap returns a single map.
// GET /api/maps/:id
func (h *MapHandlers) GetMap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	m, err := h.maps.GetMap(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeGatewayError(c, h.log, err, "failed to get map")
		return
	}
	c.JSON(http.StatusOK, mapPayload(m))
}

// DeleteMap removes a map.
// DELETE /api/maps/:id
func (h *MapHandlers) DeleteMap(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.maps.DeleteMap(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeGatewayError(c, h.log, err, "failed to delete map")
		return
	}
	c.Status(http.StatusNoContent)
}

// writeGatewayError maps coded service errors onto HTTP statuses.
func writeGatewayError(c *gin.Context, logger *zerolog.Logger, err error, logMsg string) {
	var ge *core.GatewayError
	if errors.As(err, &ge) {
		switch ge.Code {
		case core.ErrCodeNotFound:
			c.JSON(http.StatusNotFound, ErrorResponse{Error: ge.Message})
		case core.ErrCodeAccessDenied:
			c.JSON(http.StatusForbidden, ErrorResponse{Error: ge.Message})
		case core.ErrCodeBadRequest:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: ge.Message})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}
	logger.Error().Err(err).Msg(logMsg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
