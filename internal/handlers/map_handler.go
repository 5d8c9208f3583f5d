package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"reliefboard/internal/apierror"
	"reliefboard/internal/kml"
)

// PlacemarkSource is satisfied by *services.MapService.
type PlacemarkSource interface {
	Placemarks(ctx context.Context) ([]kml.Placemark, error)
}

type MapHandler struct {
	maps PlacemarkSource
}

func NewMapHandler(maps PlacemarkSource) *MapHandler {
	return &MapHandler{maps: maps}
}

// @Summary      河岸區域地圖
// @Description  由 KML 來源解析出的多邊形區域
// @Tags         Map
// @Produce      json
// @Success      200  {array}   kml.Placemark
// @Failure      502  {object}  apierror.Response
// @Router       /map/placemarks [get]
func (h *MapHandler) Placemarks(c *gin.Context) {
	pms, err := h.maps.Placemarks(c.Request.Context())
	if err != nil {
		respondError(c, err, apierror.ResourceMap)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, pms)
}
