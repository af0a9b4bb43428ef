package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"cinema-ticketing/internal/apperr"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
	"cinema-ticketing/internal/seatmap"
	"cinema-ticketing/internal/utils"
)

type Handler struct {
	Seats  *seatmap.Service
	Logger *logger.Logger
}

func NewHandler(seats *seatmap.Service, log *logger.Logger) *Handler {
	return &Handler{Seats: seats, Logger: log}
}

type seatBatchRequest struct {
	ScheduleID int64            `json:"schedule_id"`
	Seats      []models.SeatPos `json:"seats"`
}

type initRequest struct {
	ScheduleID int64 `json:"schedule_id"`
	TotalRows  int   `json:"total_rows"`
	TotalCols  int   `json:"total_cols"`
}

func (h *Handler) LockSeats(w http.ResponseWriter, r *http.Request) {
	var req seatBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	locked, err := h.Seats.LockSeats(r.Context(), req.ScheduleID, req.Seats)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("LockSeats: schedule=%d: %v", req.ScheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seats locked", map[string]interface{}{
		"locked_seats": locked,
	}))
}

func (h *Handler) ReleaseSeats(w http.ResponseWriter, r *http.Request) {
	var req seatBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	released, err := h.Seats.ReleaseSeats(r.Context(), req.ScheduleID, req.Seats)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("ReleaseSeats: schedule=%d: %v", req.ScheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seats released", map[string]interface{}{
		"released": released,
	}))
}

func (h *Handler) MarkSeatsSold(w http.ResponseWriter, r *http.Request) {
	var req seatBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	sold, err := h.Seats.MarkSeatsSold(r.Context(), req.ScheduleID, req.Seats)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("MarkSeatsSold: schedule=%d: %v", req.ScheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seats sold", map[string]interface{}{
		"sold": sold,
	}))
}

func (h *Handler) GetSeatStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scheduleID, err := strconv.ParseInt(q.Get("schedule_id"), 10, 64)
	if err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	intParam := func(name string) int {
		v, _ := strconv.Atoi(q.Get(name))
		return v
	}

	status, err := h.Seats.GetSeatStatus(r.Context(), scheduleID,
		intParam("row_start"), intParam("row_end"),
		intParam("col_start"), intParam("col_end"))
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("GetSeatStatus: schedule=%d: %v", scheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seat status", status))
}

func (h *Handler) InitSeatMap(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperr.ErrParamInvalid)
		return
	}

	if err := h.Seats.InitSeatMap(r.Context(), req.ScheduleID, req.TotalRows, req.TotalCols); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("InitSeatMap: schedule=%d: %v", req.ScheduleID, err))
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seat map initialized", nil))
}
