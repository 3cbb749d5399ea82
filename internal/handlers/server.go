package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/commands"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/queries"
)

// ServerHandler handles server-related requests
type ServerHandler struct {
	bus *bus.Bus
}

// NewServerHandler creates a new server handler
func NewServerHandler(b *bus.Bus) *ServerHandler {
	return &ServerHandler{bus: b}
}

// List handles filtered, sorted and paginated server listing
func (h *ServerHandler) List(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Ask[models.QueryResponse[models.ServerResponse]](c.Request.Context(), h.bus, queries.FindServers{Options: opts})
	if err != nil {
		respondError(c, err)
		return
	}

	if len(resp.Items) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles retrieving a single server, discarded or not
func (h *ServerHandler) Get(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Ask[models.ServerResponse](c.Request.Context(), h.bus, queries.FindServer{ID: id})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create handles registering a new server
func (h *ServerHandler) Create(c *gin.Context) {
	var req models.RegisterServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := bus.Send[models.ServerResponse](c.Request.Context(), h.bus, commands.RegisterServer{Request: req})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Update handles replacing a server's attributes
func (h *ServerHandler) Update(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.ModifyServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := bus.Send[models.ServerResponse](c.Request.Context(), h.bus, commands.ModifyServer{ID: id, Request: req})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete discards the server. The record stays readable with discarded=true.
func (h *ServerHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Send[models.ServerResponse](c.Request.Context(), h.bus, commands.DiscardServer{ID: id})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
