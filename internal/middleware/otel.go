package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aiwendy/roundtable/internal/telemetry"
)

// OtelTracing instruments API requests with OpenTelemetry spans.
func OtelTracing(serviceName string) gin.HandlerFunc {
	return telemetry.GinMiddleware(serviceName)
}

// TraceID echoes the active trace id in the response headers.
func TraceID() gin.HandlerFunc {
	return telemetry.TraceIDMiddleware()
}
