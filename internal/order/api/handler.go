package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cinema-ticketing/internal/apperr"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
	"cinema-ticketing/internal/order"
	"cinema-ticketing/internal/utils"
)

type Handler struct {
	Orders *order.Service
	Logger *logger.Logger
}

func NewHandler(orders *order.Service, log *logger.Logger) *Handler {
	return &Handler{Orders: orders, Logger: log}
}

// userID reads the caller identity set by the gateway. A missing or bad
// header reads as 0, which the service rejects as unauthorized.
func userID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	resp, err := h.Orders.CreateOrder(r.Context(), userID(r), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: schedule=%d: %v", req.ScheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order created", resp))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	if err := h.Orders.CancelOrder(r.Context(), userID(r), orderID); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CancelOrder: order=%d: %v", orderID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order cancelled", nil))
}

func (h *Handler) MarkOrderPaid(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	if err := h.Orders.MarkOrderPaid(r.Context(), orderID); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("MarkOrderPaid: order=%d: %v", orderID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order paid", nil))
}

func (h *Handler) GetOrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	resp, err := h.Orders.GetOrderDetail(r.Context(), userID(r), orderID)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("GetOrderDetail: order=%d: %v", orderID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order detail", resp))
}

func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	pathUser, err := pathID(r, "userId")
	if err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}
	if pathUser != userID(r) {
		utils.WriteError(w, apperr.ErrForbidden)
		return
	}

	orders, err := h.Orders.GetUserOrders(r.Context(), pathUser)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("GetUserOrders: user=%d: %v", pathUser, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user orders", map[string]interface{}{
		"orders": orders,
	}))
}

// Routes mounts the order endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/orders", h.CreateOrder)
	r.Delete("/api/v1/orders/{orderId}", h.CancelOrder)
	r.Post("/api/v1/orders/{orderId}/paid", h.MarkOrderPaid)
	r.Get("/api/v1/orders/{orderId}", h.GetOrderDetail)
	r.Get("/api/v1/users/{userId}/orders", h.GetUserOrders)
}
