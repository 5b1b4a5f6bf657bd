package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"upset-radar-api/config"
	"upset-radar-api/models"
	"upset-radar-api/services"
)

// GetGames lists games, optionally filtered by sport, status and week.
func GetGames(c *gin.Context) {
	query := config.DB.Model(&models.Game{}).Order("start_time ASC")

	if sport := c.Query("sport"); sport != "" {
		query = query.Where("sport = ?", strings.ToUpper(sport))
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if week := c.Query("week"); week != "" {
		query = query.Where("week = ?", week)
	}

	var games []models.Game
	if err := query.Limit(200).Find(&games).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games, "total": len(games)})
}

// GetGame returns one game with its feature record and latest odds.
func GetGame(c *gin.Context) {
	id := c.Param("id")

	var game models.Game
	if err := config.DB.First(&game, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	response := gin.H{"game": game}

	var features models.GameFeatures
	if err := config.DB.First(&features, "game_id = ?", id).Error; err == nil {
		response["features"] = features
	}

	var latestOdds models.OddsSnapshot
	if err := config.DB.
		Where("game_id = ?", id).
		Order("captured_at DESC").
		First(&latestOdds).Error; err == nil {
		response["latest_odds"] = latestOdds
	}

	c.JSON(http.StatusOK, response)
}

// GetGameOddsHistory returns the snapshot time series behind the movement
// features.
func GetGameOddsHistory(c *gin.Context) {
	id := c.Param("id")

	var snapshots []models.OddsSnapshot
	err := config.DB.
		Where("game_id = ?", id).
		Order("captured_at ASC").
		Limit(200).
		Find(&snapshots).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch odds history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game_id": id, "snapshots": snapshots, "total": len(snapshots)})
}

// GetHighUPSGames lists scored games at or above the high-UPS bar, best
// candidates first.
func GetHighUPSGames(c *gin.Context) {
	var rows []models.GameFeatures
	err := config.DB.
		Where("ups_score IS NOT NULL AND ups_score >= ?", services.HighUPSThreshold).
		Order("ups_score DESC").
		Limit(50).
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": rows, "total": len(rows)})
}
