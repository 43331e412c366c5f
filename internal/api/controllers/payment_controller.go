package controllers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/logging"
	"storefront/internal/models/request_models"
	"storefront/internal/models/response_models"
	"storefront/internal/services"
	"storefront/pkg/utils"
)

type PaymentController struct {
	paymentService services.PaymentService
	frontendURL    string
	returnPage     *template.Template
}

func NewPaymentController(paymentService services.PaymentService, frontendURL string) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		frontendURL:    frontendURL,
		returnPage:     template.Must(template.New("return").Parse(returnPageTemplate)),
	}
}

// CreateSession godoc
// @Summary Create a hosted payment session
// @Description Quotes the cart server-side, opens a Flow payment and stores a PENDING order
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.CheckoutRequest true "Cart, payer and delivery metadata"
// @Success 200 {object} utils.APIResponse{data=response_models.CreateSessionResponse}
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /api/payments/session [post]
func (p *PaymentController) CreateSession(c *gin.Context) {
	var request request_models.CheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := p.paymentService.CreateSession(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Payment session created")
}

// Confirm godoc
// @Summary Gateway payment confirmation
// @Description Called by Flow. Answers CONFIRMED or PENDING as plain text, or an error object.
// @Tags Payments
// @Accept x-www-form-urlencoded,json
// @Produce plain,json
// @Param token formData string true "Gateway token"
// @Param s formData string false "HMAC signature"
// @Success 200 {string} string "CONFIRMED"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /flow/confirm [post]
func (p *PaymentController) Confirm(c *gin.Context) {
	var request request_models.ConfirmationRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidRequest"})
		return
	}

	res := p.paymentService.Reconcile(c.Request.Context(), request.Token, request.Sig())
	if res.Outcome != services.OutcomeRejected {
		c.String(http.StatusOK, string(res.Outcome))
		return
	}

	logging.From(c).Info("confirmation rejected", "reason", utils.ErrorCode(res.Reason), "commerce_order_id", res.CommerceOrderID)
	c.JSON(res.HTTPStatus(), gin.H{"error": utils.ErrorCode(res.Reason)})
}

// Return godoc
// @Summary Browser landing page after payment
// @Description Read-only status page. Never changes order state.
// @Tags Payments
// @Produce html
// @Param token query string false "Gateway token"
// @Success 200 {string} string "HTML page"
// @Router /flow/return [get]
func (p *PaymentController) Return(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.PostForm("token")
	}

	view := returnView{FrontendURL: p.frontendURL}
	status, err := p.paymentService.ReturnStatus(c.Request.Context(), token)
	if err != nil {
		logging.From(c).Warn("return page status lookup failed", "error", err.Error())
		view.Headline = "No pudimos verificar tu pago"
		view.Message = "Si realizaste el pago, recibirás un correo de confirmación en unos minutos."
	} else {
		view.fill(status)
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := p.returnPage.Execute(c.Writer, view); err != nil {
		logging.From(c).Error("render return page", "error", err.Error())
	}
}

type returnView struct {
	Headline        string
	Message         string
	CommerceOrderID string
	Amount          string
	Success         bool
	FrontendURL     string
}

func (v *returnView) fill(s *response_models.PaymentReturnView) {
	v.CommerceOrderID = s.CommerceOrderID
	if s.Amount > 0 {
		v.Amount = services.FormatCLP(s.Amount)
	}
	switch s.Status {
	case "PAID":
		v.Success = true
		v.Headline = "¡Pago recibido!"
		v.Message = "Gracias por tu compra. Te enviamos la confirmación por correo."
	case "PENDING":
		v.Headline = "Pago en proceso"
		v.Message = "Tu pago aún se está procesando. Te avisaremos por correo cuando se confirme."
	default:
		v.Headline = "El pago no se completó"
		v.Message = "Tu pago fue rechazado o anulado. Puedes intentarlo nuevamente."
	}
}

const returnPageTemplate = `<!doctype html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Headline}}</title>
  <style>
    body { font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; background: #f4f5f7; margin: 0; }
    main { max-width: 480px; margin: 10vh auto; background: #fff; border-radius: 12px; padding: 32px; text-align: center; border: 1px solid #e4e7eb; }
    h1 { font-size: 24px; margin: 0 0 12px; color: {{if .Success}}#047857{{else}}#1f2933{{end}}; }
    p { color: #52606d; line-height: 1.6; }
    a.btn { display: inline-block; margin-top: 16px; padding: 12px 24px; background: #2563eb; color: #fff; border-radius: 8px; text-decoration: none; }
  </style>
</head>
<body>
  <main>
    <h1>{{.Headline}}</h1>
    <p>{{.Message}}</p>
    {{if .CommerceOrderID}}<p>Pedido: <strong>{{.CommerceOrderID}}</strong>{{if .Amount}} · Monto: <strong>{{.Amount}}</strong>{{end}}</p>{{end}}
    {{if .FrontendURL}}<a class="btn" href="{{.FrontendURL}}">Volver a la tienda</a>{{end}}
  </main>
</body>
</html>`
