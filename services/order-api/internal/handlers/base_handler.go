package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type BaseHandler struct {
	logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{logger: logger}
}

func (b *BaseHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", b.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.NoRoute(b.RouteNotFound)
}

// RouteNotFound answers unknown paths with JSON instead of Gin's plain-text 404.
func (b *BaseHandler) RouteNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
}

// GetHealth godoc
// @Summary     Liveness check
// @Tags        base
// @Produce     json
// @Success     200 {object} map[string]string
// @Router      /health [get]
func (b *BaseHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// requireTraceID reads the trace id set by the TraceID middleware and answers 500 when it is missing.
func requireTraceID(c *gin.Context, logger *zap.Logger) (string, bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		respondError(c, logger, "", pkg.NewAppError(pkg.ErrServerCode, "missing trace id", err))
		return "", false
	}
	return traceID, true
}

// respondError writes err in the standard error envelope.
func respondError(c *gin.Context, logger *zap.Logger, traceID string, err error) {
	resp := pkg.ToErrorResponse(logger, traceID, err)
	c.JSON(resp.Status, resp)
}

// bindError turns a binding failure into a 400, or 413 when the body limit was hit.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkg.NewAppError(pkg.ErrorCode{
			Code:    pkg.ErrInvalidInputCode.Code,
			Status:  http.StatusRequestEntityTooLarge,
			Message: "request body too large",
		}, "request body too large", err)
	}
	return pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err)
}
