package middleware

import (
	"strings"
	"time"

	"tenantdb/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS builds the CORS handler. The tenant header is always allowed.
func SetupCORS(cfg *config.Config) gin.HandlerFunc {
	headers := cfg.CORS.AllowHeaders
	if cfg.Tenancy.Header != "" && !containsFold(headers, cfg.Tenancy.Header) {
		headers = append(append([]string{}, headers...), cfg.Tenancy.Header)
	}

	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     headers,
		ExposeHeaders:    cfg.CORS.ExposeHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Hour,
	})
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
