package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/bus"
	"github.com/imyashkale/inventoryserver/internal/commands"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/queries"
)

// ApplicationHandler handles application-related requests
type ApplicationHandler struct {
	bus *bus.Bus
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(b *bus.Bus) *ApplicationHandler {
	return &ApplicationHandler{bus: b}
}

func (h *ApplicationHandler) List(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Ask[models.QueryResponse[models.ApplicationResponse]](c.Request.Context(), h.bus, queries.FindApplications{Options: opts})
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

func (h *ApplicationHandler) Get(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Ask[models.ApplicationResponse](c.Request.Context(), h.bus, queries.FindApplication{ID: id})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	var req models.RegisterApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := bus.Send[models.ApplicationResponse](c.Request.Context(), h.bus, commands.RegisterApplication{Request: req})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.ModifyApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	resp, err := bus.Send[models.ApplicationResponse](c.Request.Context(), h.bus, commands.ModifyApplication{ID: id, Request: req})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete discards the application
func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := bus.Send[models.ApplicationResponse](c.Request.Context(), h.bus, commands.DiscardApplication{ID: id})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
