package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
	"github.com/lumenlabs/lumen-server/internal/assistant"
	"github.com/lumenlabs/lumen-server/internal/auth"
	"github.com/lumenlabs/lumen-server/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	service *assistant.Service,
	registry repositories.DeviceRegistry,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "lumen-server",
			"devices": hub.ConnectedDevices(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Device APIs
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, registry, logger)
	})

	// Dashboard APIs
	v1.POST("/dashboard/auth", func(c echo.Context) error {
		return dashboardAuth(c, logger)
	})
	v1.GET("/dashboard/snapshot", func(c echo.Context) error {
		return dashboardSnapshot(c, service, logger)
	})
	v1.GET("/photos/:id", func(c echo.Context) error {
		return photoByRef(c, service, logger)
	})

	// WebSocket endpoints with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return deviceWebSocket(hub, c, logger)
	})
	e.GET("/ws/dashboard", func(c echo.Context) error {
		return dashboardWebSocket(hub, c, logger)
	})
}

// deviceAuth exchanges device credentials for a connection token
func deviceAuth(c echo.Context, registry repositories.DeviceRegistry, logger *zap.Logger) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := registry.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	// A device without an explicit wearer is its own conversation domain
	userID := req.UserID
	if userID == "" {
		userID = device.ID
	}

	token, err := auth.GenerateDeviceToken(device.ID, userID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated successfully",
		zap.String("device_id", device.ID),
		zap.String("user_id", userID))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  device.ID,
		UserID:    userID,
	})
}

// dashboardAuth exchanges the shared dashboard access key for a token
func dashboardAuth(c echo.Context, logger *zap.Logger) error {
	var req DashboardAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	accessKey := os.Getenv("DASHBOARD_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "lumen-dev"
	}
	if req.AccessKey != accessKey {
		logger.Warn("Dashboard authentication failed")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}

	token, err := auth.GenerateDashboardToken("dashboard")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, DashboardAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	})
}

// dashboardSnapshot serves the sanitized pipeline state
func dashboardSnapshot(c echo.Context, service *assistant.Service, logger *zap.Logger) error {
	if err := requireRole(c, auth.RoleDashboard); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service.Snapshot())
}

// photoByRef resolves a sanitized photo reference to its raw payload
func photoByRef(c echo.Context, service *assistant.Service, logger *zap.Logger) error {
	if err := requireRole(c, auth.RoleDashboard); err != nil {
		return err
	}

	photo, ok := service.Photo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Photo reference is unknown or no longer retained",
		})
	}
	return c.Blob(http.StatusOK, photo.MimeType, photo.Data)
}

// deviceWebSocket handles glasses connections with JWT authentication
func deviceWebSocket(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, err := claimsFromRequest(c)
	if err != nil {
		logger.Warn("WebSocket connection rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "A valid JWT token is required",
		})
	}

	if claims.Role != auth.RoleDevice {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for this endpoint",
		})
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.DeviceID
	}
	if userID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "User identity not found in token",
		})
	}

	captureRef := c.QueryParam("capture_url")
	logger.Info("WebSocket connection authenticated",
		zap.String("device_id", claims.DeviceID),
		zap.String("user_id", userID))

	return websocket.HandleDeviceWebSocket(hub, c, userID, captureRef, logger)
}

// dashboardWebSocket handles dashboard event stream connections
func dashboardWebSocket(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, err := claimsFromRequest(c)
	if err != nil {
		logger.Warn("Dashboard WebSocket rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "A valid JWT token is required",
		})
	}
	if claims.Role != auth.RoleDashboard {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only dashboard tokens are allowed for this endpoint",
		})
	}
	return websocket.HandleDashboardWebSocket(hub, c, logger)
}

// requireRole checks the bearer token's role claim
func requireRole(c echo.Context, role string) error {
	claims, err := claimsFromRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "A valid JWT token is required")
	}
	if claims.Role != role {
		return echo.NewHTTPError(http.StatusForbidden, "Token role is not allowed for this endpoint")
	}
	return nil
}

// claimsFromRequest extracts the JWT from the Authorization header or,
// for browser websocket clients that cannot set headers, the token
// query parameter.
func claimsFromRequest(c echo.Context) (*auth.JWTClaims, error) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	return auth.ValidateToken(token)
}
