package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/database/repository"
	"github.com/halcyon-games/halcyon-game-backend/internal/models"
	"github.com/halcyon-games/halcyon-game-backend/internal/services/report"
	"github.com/halcyon-games/halcyon-game-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	userRepo      *repository.UserRepository
	reportService *report.Service
}

func NewAdminHandler(userRepo *repository.UserRepository, reportService *report.Service) *AdminHandler {
	return &AdminHandler{
		userRepo:      userRepo,
		reportService: reportService,
	}
}

// GetAllUsers godoc
// @Summary List accounts (Admin only)
// @Description List accounts with pagination and search
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Username or email search"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/users [get]
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("page_size"))
	page, pageSize = utils.ValidateAndNormalizePagination(page, pageSize)

	users, total, err := h.userRepo.GetAllUsers(c.Request.Context(), page, pageSize, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get users", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": utils.CalculatePaginationInfo(int(total), page, pageSize),
	})
}

// SetUserStatus godoc
// @Summary Set account active status (Admin only)
// @Description Activate or deactivate an account; deactivated accounts cannot log in or refresh
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.SetUserActiveRequest true "Status request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/users/{id}/status [put]
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	userID := c.Param("id")

	var req models.SetUserActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.userRepo.SetActive(c.Request.Context(), userID, req.IsActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user status", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User status updated successfully"})
}

// SessionsReport godoc
// @Summary Download session report (Admin only)
// @Description Export accounts with active/total session counts as xlsx
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /admin/reports/sessions [get]
func (h *AdminHandler) SessionsReport(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	f, err := h.reportService.BuildSessionReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report", "details": err.Error()})
		return
	}

	filename := fmt.Sprintf("session_report_%d.xlsx", time.Now().Unix())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write report", "details": err.Error()})
	}
}

func requireAdmin(c *gin.Context) bool {
	user := c.MustGet("user").(*models.User)
	if !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required"})
		return false
	}
	return true
}
