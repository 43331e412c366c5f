package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/models/request_models"
	"storefront/internal/services"
	"storefront/pkg/utils"
)

type OrderController struct {
	orderService services.OrderServiceInterface
}

func NewOrderController(orderService services.OrderServiceInterface) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateTransferOrder godoc
// @Summary Create a bank transfer order
// @Description Stores a PENDING_TRANSFER order and returns the bank details to pay to
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body request_models.CheckoutRequest true "Cart, payer and delivery metadata"
// @Success 200 {object} utils.APIResponse{data=response_models.TransferOrderResponse}
// @Failure 400 {object} utils.APIResponse
// @Router /api/orders/transfer [post]
func (o *OrderController) CreateTransferOrder(c *gin.Context) {
	var request request_models.CheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := o.orderService.CreateTransferOrder(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resp, "Transfer order created")
}

// ListByEmail godoc
// @Summary List orders of a payer
// @Tags Orders
// @Produce json
// @Param email query string true "Payer email"
// @Success 200 {object} utils.APIResponse{data=[]response_models.OrderView}
// @Failure 400 {object} utils.APIResponse
// @Router /api/orders/by-email [get]
func (o *OrderController) ListByEmail(c *gin.Context) {
	orders, err := o.orderService.ListByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, orders, "Orders retrieved")
}

// ListAll godoc
// @Summary List all orders
// @Tags Admin
// @Produce json
// @Param state query string false "Filter by state"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} utils.APIResponse{data=response_models.OrderPage}
// @Failure 401 {object} utils.APIResponse
// @Security AdminKey
// @Router /api/admin/orders [get]
func (o *OrderController) ListAll(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		utils.HandleServiceError(c, utils.ErrInvalidPage)
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil {
		utils.HandleServiceError(c, utils.ErrInvalidPageSize)
		return
	}

	result, err := o.orderService.ListAll(c.Request.Context(), c.Query("state"), page, pageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, result, "Orders retrieved")
}

// MarkPaid godoc
// @Summary Settle an order by hand
// @Description Moves a PENDING, PENDING_TRANSFER or AMOUNT_MISMATCH order to PAID and notifies the payer
// @Tags Admin
// @Produce json
// @Param id path string true "Order id or commerce order id"
// @Success 200 {object} utils.APIResponse{data=response_models.AdminOrderView}
// @Failure 401 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security AdminKey
// @Router /api/admin/orders/{id}/mark-paid [post]
func (o *OrderController) MarkPaid(c *gin.Context) {
	view, err := o.orderService.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, "Order marked as paid")
}
