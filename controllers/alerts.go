package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"upset-radar-api/config"
	"upset-radar-api/models"
	"upset-radar-api/services"
)

// AlertController manages alert subscriptions and the delivery queue.
type AlertController struct {
	Engine *services.AlertEngine
}

func NewAlertController(engine *services.AlertEngine) *AlertController {
	return &AlertController{Engine: engine}
}

type subscriptionRequest struct {
	SubscriptionType string  `json:"subscription_type"`
	TargetID         *string `json:"target_id"`
	Sport            string  `json:"sport"`
	UPSThreshold     float64 `json:"ups_threshold"`
	WebsocketEnabled *bool   `json:"websocket_enabled"`
	PushEnabled      *bool   `json:"push_enabled"`
	EmailEnabled     *bool   `json:"email_enabled"`
	PushToken        *string `json:"push_token"`
	PushProvider     *string `json:"push_provider"`
}

// CreateSubscription registers a standing alert request for the caller.
func (ac *AlertController) CreateSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	sub := models.AlertSubscription{
		UserID:           userID.(uint),
		SubscriptionType: models.SubscriptionTypeUPSThreshold,
		Sport:            "NFL",
		UPSThreshold:     65,
		Active:           true,
		WebsocketEnabled: true,
		PushEnabled:      true,
		TargetID:         req.TargetID,
		PushToken:        req.PushToken,
		PushProvider:     req.PushProvider,
	}
	if req.SubscriptionType != "" {
		switch req.SubscriptionType {
		case models.SubscriptionTypeUPSThreshold, models.SubscriptionTypeTeam,
			models.SubscriptionTypeGame, models.SubscriptionTypeAllUpsets:
			sub.SubscriptionType = req.SubscriptionType
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown subscription type"})
			return
		}
	}
	if req.Sport != "" {
		sub.Sport = req.Sport
	}
	if req.UPSThreshold > 0 {
		if req.UPSThreshold > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Threshold must be within [0,100]"})
			return
		}
		sub.UPSThreshold = req.UPSThreshold
	}
	if req.WebsocketEnabled != nil {
		sub.WebsocketEnabled = *req.WebsocketEnabled
	}
	if req.PushEnabled != nil {
		sub.PushEnabled = *req.PushEnabled
	}
	if req.EmailEnabled != nil {
		sub.EmailEnabled = *req.EmailEnabled
	}

	if err := config.DB.Create(&sub).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// GetSubscriptions lists the caller's subscriptions.
func (ac *AlertController) GetSubscriptions(c *gin.Context) {
	userID, _ := c.Get("userID")

	var subs []models.AlertSubscription
	if err := config.DB.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "total": len(subs)})
}

// DeactivateSubscription turns a subscription off without deleting it.
func (ac *AlertController) DeactivateSubscription(c *gin.Context) {
	userID, _ := c.Get("userID")
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription id"})
		return
	}

	result := config.DB.Model(&models.AlertSubscription{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription deactivated"})
}

// GetAlertQueue lists the caller's alerts, newest first. Admins see the
// whole queue with an optional status filter.
func (ac *AlertController) GetAlertQueue(c *gin.Context) {
	userID, _ := c.Get("userID")
	roleID, _ := c.Get("roleID")

	query := config.DB.Model(&models.QueuedAlert{}).Order("created_at DESC").Limit(100)
	if roleID == models.RoleAdmin {
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
	} else {
		query = query.Where("user_id = ?", userID)
	}

	var alerts []models.QueuedAlert
	if err := query.Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

// RearmAlert resets a terminally failed alert for another delivery attempt.
func (ac *AlertController) RearmAlert(c *gin.Context) {
	alert, err := ac.Engine.Rearm(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert, "message": "Alert re-armed"})
}
