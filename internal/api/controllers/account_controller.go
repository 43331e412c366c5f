package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models/request_models"
	"storefront/internal/services"
	"storefront/pkg/utils"
)

type AccountController struct {
	accountService services.AccountServiceInterface
}

func NewAccountController(accountService services.AccountServiceInterface) *AccountController {
	return &AccountController{
		accountService: accountService,
	}
}

// ForgotPassword godoc
// @Summary Request a password reset
// @Description Mails a single-use reset link. Always succeeds for well-formed addresses.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body request_models.PasswordRecoveryRequest true "Email"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /api/send-password-recovery [post]
func (a *AccountController) ForgotPassword(c *gin.Context) {
	var req request_models.PasswordRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := a.accountService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "If the email exists, recovery instructions were sent")
}

// ResetPassword godoc
// @Summary Redeem a password reset token
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body request_models.ResetPasswordRequest true "Token and new password"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /api/reset-password [post]
func (a *AccountController) ResetPassword(c *gin.Context) {
	var req request_models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	email, err := a.accountService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"email": email}, "Password reset successfully")
}

// SendRegistrationEmail godoc
// @Summary Send the welcome email
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body request_models.RegistrationEmailRequest true "Email and name"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /api/send-registration-email [post]
func (a *AccountController) SendRegistrationEmail(c *gin.Context) {
	var req request_models.RegistrationEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := a.accountService.SendRegistrationEmail(c.Request.Context(), req.Email, req.Name); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Registration email sent")
}
