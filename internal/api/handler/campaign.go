package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wyatt/creatorscout/internal/service"
)

// CampaignHandler handles campaign endpoints.
type CampaignHandler struct {
	campaigns *service.CampaignService
}

// NewCampaignHandler creates a new campaign handler.
// Parameters:
//   - campaigns: campaign service instance.
// Returns:
//   - *CampaignHandler: initialized handler.
func NewCampaignHandler(campaigns *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
	}
}

// Create handles POST /api/v1/campaigns.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CampaignHandler) Create(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	campaign, err := h.campaigns.Create(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create campaign: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// Get handles GET /api/v1/campaigns/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Campaign not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load campaign: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// List handles GET /api/v1/campaigns.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CampaignHandler) List(c *gin.Context) {
	ownerID := c.Query("owner_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	campaigns, err := h.campaigns.ListByOwner(c.Request.Context(), ownerID, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list campaigns: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}
