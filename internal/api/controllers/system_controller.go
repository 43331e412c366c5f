package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/internal/services"
	"storefront/pkg/utils"
)

type SystemController struct {
	mailService services.IMailService
	mailFrom    string
	startedAt   time.Time
}

func NewSystemController(mailService services.IMailService, mailFrom string) *SystemController {
	return &SystemController{
		mailService: mailService,
		mailFrom:    mailFrom,
		startedAt:   time.Now(),
	}
}

// Health godoc
// @Summary Liveness check
// @Tags System
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /health [get]
func (s *SystemController) Health(c *gin.Context) {
	utils.RespondSuccess(c, gin.H{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	}, "ok")
}

// EmailConfig godoc
// @Summary Active email provider
// @Description Reports which provider is active. Never returns credentials.
// @Tags System
// @Produce json
// @Success 200 {object} utils.APIResponse{data=response_models.EmailConfigView}
// @Router /api/email-config [get]
func (s *SystemController) EmailConfig(c *gin.Context) {
	provider := s.mailService.Provider()
	utils.RespondSuccess(c, response_models.EmailConfigView{
		Provider:   provider,
		Configured: provider != services.ProviderNoop,
		From:       s.mailFrom,
	}, "Email configuration")
}

// TestEmail godoc
// @Summary Send a test email
// @Tags System
// @Accept json
// @Produce json
// @Param request body request_models.TestEmailRequest true "Recipient"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security TestKey
// @Router /api/test-email [post]
func (s *SystemController) TestEmail(c *gin.Context) {
	var req request_models.TestEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Correo de prueba"
	}
	err := s.mailService.SendMailToNotifyUser(c.Request.Context(), req.To, subject,
		"Si recibiste este mensaje, el envío de correos está funcionando.", "", "")
	if err != nil {
		// surfaced verbatim: this endpoint exists to debug the provider
		utils.RespondErrorCode(c, http.StatusBadGateway, err, gin.H{"provider": s.mailService.Provider()})
		return
	}
	utils.RespondSuccess(c, gin.H{"provider": s.mailService.Provider()}, "Test email sent")
}
