package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/imyashkale/inventoryserver/internal/repository"
)

// listOptions reads limit, offset, filter, and_filter, or_filter and sort
func listOptions(c *gin.Context) (repository.ListOptions, error) {
	return filter.Parse(
		c.Query("limit"),
		c.Query("offset"),
		c.Query("filter"),
		c.Query("and_filter"),
		c.Query("or_filter"),
		c.Query("sort"),
	)
}

func idParam(c *gin.Context) (models.ID, error) {
	return models.ParseID(c.Param("id"))
}
