package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/signet/internal/cache"
)

type StatsHandler struct {
	urls *cache.SignedURLCache
}

func NewStatsHandler(urls *cache.SignedURLCache) *StatsHandler {
	return &StatsHandler{urls: urls}
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.urls.Stats())
}
