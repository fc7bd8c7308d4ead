package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tastemap/restaurant-intel/internal/geo"
	"github.com/tastemap/restaurant-intel/internal/service"
	"github.com/tastemap/restaurant-intel/internal/store"
	"github.com/tastemap/restaurant-intel/pkg/models"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/restaurants/search", h.Search)
		v1.POST("/restaurants/ingest", h.Ingest)
		v1.GET("/restaurants/:id", h.GetRestaurant)
	}
}

// Search: GET /v1/restaurants/search?latitude=13.75&longitude=100.50&radius=5000
//
//	&cuisine=thai&cuisine=seafood&rating=4&priceRange=1,3&sortBy=distance
//	&limit=20&offset=0&includeExternal=true&keyword=noodles
func (h *Handler) Search(c *gin.Context) {
	params, err := bindSearchParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Search(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidParameter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Ingest: POST /v1/restaurants/ingest
// Body: JSON array of restaurants
func (h *Handler) Ingest(c *gin.Context) {
	var payload []*models.Restaurant
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	imported, rejected, err := h.svc.Ingest(c.Request.Context(), payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"meta": gin.H{
			"imported": imported,
			"rejected": rejected,
		},
	})
}

// GetRestaurant: GET /v1/restaurants/:id
func (h *Handler) GetRestaurant(c *gin.Context) {
	id := c.Param("id")
	r, err := h.svc.GetRestaurant(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "restaurant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r)
}

func bindSearchParams(c *gin.Context) (models.SearchParams, error) {
	var params models.SearchParams

	lat, latErr := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("longitude"), 64)
	if latErr != nil || lngErr != nil {
		return params, errors.New("invalid or missing latitude/longitude parameters")
	}
	params.Center = geo.Coordinates{Latitude: lat, Longitude: lng}

	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "5000"), 64)
	if err != nil {
		return params, errors.New("invalid radius parameter")
	}
	params.RadiusMeters = radius

	// cuisine may repeat or hold a comma-separated list
	for _, raw := range c.QueryArray("cuisine") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				params.Filters.Cuisines = append(params.Filters.Cuisines, tag)
			}
		}
	}

	if v := c.Query("rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, errors.New("invalid rating parameter")
		}
		params.Filters.MinRating = r
	}

	// priceRange accepts a single level ("2") or an inclusive range ("1,3")
	if v := c.Query("priceRange"); v != "" {
		min, max, err := parsePriceRange(v)
		if err != nil {
			return params, err
		}
		params.Filters.PriceMin = &min
		params.Filters.PriceMax = &max
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		return params, errors.New("invalid limit parameter")
	}
	params.Limit = limit

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return params, errors.New("invalid offset parameter")
	}
	params.Offset = offset

	includeExternal, err := strconv.ParseBool(c.DefaultQuery("includeExternal", "true"))
	if err != nil {
		return params, errors.New("invalid includeExternal parameter")
	}
	params.IncludeExternal = includeExternal

	params.SortBy = models.SortOrder(c.DefaultQuery("sortBy", string(models.SortDistance)))
	params.Keyword = c.Query("keyword")

	return params, nil
}

func parsePriceRange(v string) (min, max int, err error) {
	parts := strings.Split(v, ",")
	switch len(parts) {
	case 1:
		lvl, perr := strconv.Atoi(strings.TrimSpace(parts[0]))
		if perr != nil {
			return 0, 0, errors.New("invalid priceRange parameter")
		}
		return lvl, lvl, nil
	case 2:
		lo, loErr := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, hiErr := strconv.Atoi(strings.TrimSpace(parts[1]))
		if loErr != nil || hiErr != nil {
			return 0, 0, errors.New("invalid priceRange parameter")
		}
		return lo, hi, nil
	default:
		return 0, 0, errors.New("invalid priceRange parameter")
	}
}
