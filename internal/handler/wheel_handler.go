// internal/handler/wheel_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartwheel/internal/comports"
	"smartwheel/internal/connection"
	"smartwheel/internal/model"
	"smartwheel/internal/service"
	"smartwheel/internal/swm"
	"smartwheel/internal/utils"
)

// WheelHandler handles wheel-related HTTP requests
type WheelHandler struct {
	wheelService *service.WheelService
	scanner      *comports.Scanner
	logger       *utils.ServiceLogger
}

// NewWheelHandler creates a new wheel handler
func NewWheelHandler(wheelService *service.WheelService, scanner *comports.Scanner, logger *zap.Logger) *WheelHandler {
	return &WheelHandler{
		wheelService: wheelService,
		scanner:      scanner,
		logger:       utils.NewServiceLogger(logger, "wheel-handler"),
	}
}

// RegisterRoutes registers wheel-related routes
func (h *WheelHandler) RegisterRoutes(router *gin.RouterGroup) {
	wheel := router.Group("/wheel")
	{
		wheel.GET("", h.GetWheel)
		wheel.GET("/status", h.GetStatus)
		wheel.GET("/responses", h.ListResponses)
		wheel.GET("/responses/:code", h.GetResponse)
		wheel.GET("/adc", h.ListADC)
		wheel.GET("/adc/:label", h.GetADC)
		wheel.GET("/incoming", h.DrainIncoming)
		wheel.GET("/messages", h.ListMessages)

		wheel.POST("/connect", h.Connect)
		wheel.POST("/disconnect", h.Disconnect)
		wheel.POST("/enable", h.Enable)
		wheel.POST("/disable", h.Disable)
		wheel.POST("/reset", h.Reset)
		wheel.POST("/command", h.Command)
		wheel.POST("/setpoints", h.SetSetpoints)
		wheel.POST("/adc/reset", h.ResetMinMax)

		params := wheel.Group("/parameters")
		{
			params.POST("/load", h.LoadParameters)
			params.POST("/store", h.StoreParameters)
			params.PUT("/pid", h.SetPIDParameter)
		}

		wheel.GET("/connection", h.GetConnection)
		wheel.PUT("/connection", h.UpdateConnection)
		wheel.GET("/comports", h.ListComports)
	}
}

// CommandRequest carries a raw wire command
type CommandRequest struct {
	Command string `json:"command" binding:"required" example:"$15,41"`
}

// SetpointsRequest carries speed and steering setpoints
type SetpointsRequest struct {
	Speed     *int `json:"speed" binding:"required" example:"100"`
	Direction *int `json:"direction" binding:"required" example:"0"`
}

// PIDRequest sets one PID parameter by index
type PIDRequest struct {
	Index *int `json:"index" binding:"required" example:"0"`
	Value *int `json:"value" binding:"required" example:"12"`
}

// CommandResult reports the command that was queued
type CommandResult struct {
	Command string `json:"command"`
}

// ADCResponse is an ADC channel with values in both milli-units and units
type ADCResponse struct {
	Label     string `json:"label"`
	Available bool   `json:"available"`
	Current   int    `json:"current"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	CurrentV  string `json:"current_scaled"`
	MinV      string `json:"min_scaled"`
	MaxV      string `json:"max_scaled"`
}

func newADCResponse(r swm.ADCReading) ADCResponse {
	cur, lo, hi := r.Scaled()
	return ADCResponse{
		Label:     r.Label,
		Available: r.Available,
		Current:   r.Current,
		Min:       r.Min,
		Max:       r.Max,
		CurrentV:  cur.String(),
		MinV:      lo.String(),
		MaxV:      hi.String(),
	}
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, connection.ErrNotConnected), errors.Is(err, connection.ErrConnected):
		return http.StatusConflict
	case errors.Is(err, swm.ErrUnknownADCLabel), errors.Is(err, swm.ErrNoResponse):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidConfig), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoHistory):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *WheelHandler) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	utils.ErrorResponse(c, status, message, err)
}

func (h *WheelHandler) queued(c *gin.Context, message string, run func() (string, error)) {
	cmd, err := run()
	if err != nil {
		h.fail(c, message+" failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, message+" queued", CommandResult{Command: cmd})
}

// GetWheel returns a snapshot of the wheel state
// @Summary Get wheel state
// @Description Connection, enable state, decoded flags, motion and counters
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.WheelSnapshot}
// @Router /wheel [get]
func (h *WheelHandler) GetWheel(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Wheel retrieved successfully", h.wheelService.Snapshot())
}

// GetStatus returns the connection status line
// @Summary Get connection status
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{status=string,state=string}}
// @Router /wheel/status [get]
func (h *WheelHandler) GetStatus(c *gin.Context) {
	e := h.wheelService.Engine()
	utils.SuccessResponse(c, http.StatusOK, "Status retrieved successfully", gin.H{
		"status": e.Status(),
		"state":  e.State(),
	})
}

// ListResponses returns the cached responses keyed by command code
// @Summary List cached responses
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /wheel/responses [get]
func (h *WheelHandler) ListResponses(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Responses retrieved successfully", h.wheelService.Responses())
}

// GetResponse returns the cached response of one command code
// @Summary Get cached response
// @Tags Wheel
// @Produce json
// @Param code path string true "Command code without the leading $" example(29)
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /wheel/responses/{code} [get]
func (h *WheelHandler) GetResponse(c *gin.Context) {
	code := c.Param("code")
	if code == "" || code[0] != '$' {
		code = "$" + code
	}

	r, err := h.wheelService.Response(code)
	if err != nil {
		h.fail(c, "Response not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Response retrieved successfully", r)
}

// ListADC returns every ADC channel
// @Summary List ADC channels
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]ADCResponse}
// @Router /wheel/adc [get]
func (h *WheelHandler) ListADC(c *gin.Context) {
	channels := h.wheelService.ADCChannels()
	out := make([]ADCResponse, 0, len(channels))
	for _, r := range channels {
		out = append(out, newADCResponse(r))
	}
	utils.SuccessResponse(c, http.StatusOK, "ADC channels retrieved successfully", out)
}

// GetADC returns one ADC channel by label
// @Summary Get ADC channel
// @Tags Wheel
// @Produce json
// @Param label path string true "Channel label"
// @Success 200 {object} utils.APIResponse{data=ADCResponse}
// @Failure 404 {object} utils.APIResponse
// @Router /wheel/adc/{label} [get]
func (h *WheelHandler) GetADC(c *gin.Context) {
	r, err := h.wheelService.ADC(c.Param("label"))
	if err != nil {
		h.fail(c, "ADC channel not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "ADC channel retrieved successfully", newADCResponse(r))
}

// DrainIncoming returns raw records received since the previous call
// @Summary Drain raw incoming records
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /wheel/incoming [get]
func (h *WheelHandler) DrainIncoming(c *gin.Context) {
	records := h.wheelService.DrainIncoming()
	if records == nil {
		records = []swm.Record{}
	}
	utils.SuccessResponse(c, http.StatusOK, "Incoming records drained", records)
}

// ListMessages returns recent subscriber messages from the message store
// @Summary List recent wheel messages
// @Tags Wheel
// @Produce json
// @Param limit query int false "Maximum number of messages" default(100)
// @Success 200 {object} utils.APIResponse{data=[]model.WheelEvent}
// @Failure 503 {object} utils.APIResponse
// @Router /wheel/messages [get]
func (h *WheelHandler) ListMessages(c *gin.Context) {
	limit := int64(100)
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.ParseInt(l, 10, 64); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	events, err := h.wheelService.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "Failed to read message history", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Messages retrieved successfully", events)
}

// Connect opens the wheel connection
// @Summary Connect
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /wheel/connect [post]
func (h *WheelHandler) Connect(c *gin.Context) {
	if err := h.wheelService.Connect(c.Request.Context()); err != nil {
		h.fail(c, "Failed to connect", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Connected", gin.H{"status": h.wheelService.Engine().Status()})
}

// Disconnect closes the wheel connection
// @Summary Disconnect
// @Tags Wheel
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /wheel/disconnect [post]
func (h *WheelHandler) Disconnect(c *gin.Context) {
	if err := h.wheelService.Disconnect(); err != nil {
		h.fail(c, "Failed to disconnect", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Disconnected", gin.H{"status": h.wheelService.Engine().Status()})
}

// Enable queues the enable command
// @Summary Enable wheel
// @Tags Wheel
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/enable [post]
func (h *WheelHandler) Enable(c *gin.Context) {
	h.queued(c, "Enable", h.wheelService.Enable)
}

// Disable queues the disable command
// @Summary Disable wheel
// @Tags Wheel
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/disable [post]
func (h *WheelHandler) Disable(c *gin.Context) {
	h.queued(c, "Disable", h.wheelService.Disable)
}

// Reset queues the reset command
// @Summary Reset wheel
// @Tags Wheel
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/reset [post]
func (h *WheelHandler) Reset(c *gin.Context) {
	h.queued(c, "Reset", h.wheelService.Reset)
}

// Command queues a raw command
// @Summary Send raw command
// @Tags Wheel
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command"
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/command [post]
func (h *WheelHandler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.queued(c, "Command", func() (string, error) { return h.wheelService.Command(req.Command) })
}

// SetSetpoints queues new speed and steering setpoints
// @Summary Set setpoints
// @Tags Wheel
// @Accept json
// @Produce json
// @Param request body SetpointsRequest true "Setpoints"
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/setpoints [post]
func (h *WheelHandler) SetSetpoints(c *gin.Context) {
	var req SetpointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.queued(c, "Setpoints", func() (string, error) {
		return h.wheelService.SetSetpoints(*req.Speed, *req.Direction)
	})
}

// ResetMinMax clears the ADC minimum and maximum values
// @Summary Reset ADC min/max
// @Tags Wheel
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Router /wheel/adc/reset [post]
func (h *WheelHandler) ResetMinMax(c *gin.Context) {
	h.queued(c, "Reset min/max", h.wheelService.ResetMinMax)
}

// LoadParameters reloads the PID parameters from the module's storage
// @Summary Load parameters
// @Tags Parameters
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Router /wheel/parameters/load [post]
func (h *WheelHandler) LoadParameters(c *gin.Context) {
	h.queued(c, "Load parameters", h.wheelService.LoadParameters)
}

// StoreParameters writes the PID parameters to the module's storage
// @Summary Store parameters
// @Tags Parameters
// @Produce json
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Router /wheel/parameters/store [post]
func (h *WheelHandler) StoreParameters(c *gin.Context) {
	h.queued(c, "Store parameters", h.wheelService.StoreParameters)
}

// SetPIDParameter sets one PID parameter
// @Summary Set PID parameter
// @Tags Parameters
// @Accept json
// @Produce json
// @Param request body PIDRequest true "Parameter"
// @Success 202 {object} utils.APIResponse{data=CommandResult}
// @Failure 400 {object} utils.APIResponse
// @Router /wheel/parameters/pid [put]
func (h *WheelHandler) SetPIDParameter(c *gin.Context) {
	var req PIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.queued(c, "Set PID parameter", func() (string, error) {
		return h.wheelService.SetPIDParameter(*req.Index, *req.Value)
	})
}

// GetConnection returns the connection config
// @Summary Get connection config
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.ConnectionRecord}
// @Router /wheel/connection [get]
func (h *WheelHandler) GetConnection(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection retrieved successfully", h.wheelService.ConnectionConfig())
}

// UpdateConnection replaces the connection config wholesale
// @Summary Replace connection config
// @Description The wheel must be disconnected. The new config is persisted.
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body model.ConnectionRecord true "Connection config"
// @Success 200 {object} utils.APIResponse{data=model.ConnectionRecord}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /wheel/connection [put]
func (h *WheelHandler) UpdateConnection(c *gin.Context) {
	var cfg model.ConnectionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid connection config", err)
		return
	}

	if err := h.wheelService.UpdateConnection(cfg); err != nil {
		h.fail(c, "Failed to update connection", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Connection updated successfully", cfg)
}

// ListComports lists the serial ports of the host
// @Summary List serial ports
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]comports.Comport}
// @Failure 500 {object} utils.APIResponse
// @Router /wheel/comports [get]
func (h *WheelHandler) ListComports(c *gin.Context) {
	ports, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list serial ports", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Serial ports retrieved successfully", ports)
}
