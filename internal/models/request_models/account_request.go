package request_models

type PasswordRecoveryRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type RegistrationEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

type TestEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject"`
}
