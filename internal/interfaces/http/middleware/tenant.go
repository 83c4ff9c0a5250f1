package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/infrastructure/logger"
	"github.com/salonsuite/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys for the tenant identifying the salon making the request
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantValidator checks that a tenant exists and is active
type TenantValidator interface {
	ValidateTenant(tenantID string) error
}

// TenantMiddlewareConfig controls how the tenant is resolved.
type TenantMiddlewareConfig struct {
	// HeaderEnabled reads the tenant from the X-Tenant-ID header.
	HeaderEnabled bool
	// SubdomainEnabled reads the tenant from the host's subdomain.
	SubdomainEnabled bool
	// BaseDomain anchors subdomain extraction, e.g. "salonsuite.io".
	BaseDomain string
	// SkipPaths bypass tenant resolution entirely (probes, metrics).
	SkipPaths []string
	// Required rejects requests that carry no tenant.
	Required bool
	// Validator, when set, confirms the tenant exists and is active.
	Validator TenantValidator
	// Logger records resolution and validation events.
	Logger *zap.Logger
}

// DefaultTenantConfig requires a tenant header on everything except
// health and metrics probes.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddleware resolves the tenant with the default configuration.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// OptionalTenantMiddleware resolves the tenant when present but lets
// anonymous requests through.
func OptionalTenantMiddleware() gin.HandlerFunc {
	cfg := DefaultTenantConfig()
	cfg.Required = false
	return TenantMiddlewareWithConfig(cfg)
}

// TenantMiddlewareWithConfig resolves the tenant from the X-Tenant-ID
// header or the request subdomain, validates it, and stores it in both
// the gin context and the request context for downstream correlation.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipsTenant(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, source := resolveTenant(c, cfg)

		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				respondUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}

		if tenantID == "" && cfg.Required {
			respondUnauthorized(c, "Tenant identification required")
			return
		}

		if tenantID != "" {
			if !validateTenant(c, cfg, tenantID) {
				return
			}
			bindTenant(c, cfg, tenantID, source)
		}

		c.Next()
	}
}

func skipsTenant(skipPaths []string, path string) bool {
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip+"/") {
			return true
		}
	}
	return false
}

// resolveTenant returns the tenant ID and which source produced it,
// header taking precedence over subdomain.
func resolveTenant(c *gin.Context, cfg TenantMiddlewareConfig) (string, string) {
	if cfg.HeaderEnabled {
		if id := c.GetHeader(TenantHeaderKey); id != "" {
			return id, "header"
		}
	}
	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if id := extractTenantFromSubdomain(c.Request.Host, cfg.BaseDomain); id != "" {
			return id, "subdomain"
		}
	}
	return "", ""
}

func validateTenant(c *gin.Context, cfg TenantMiddlewareConfig, tenantID string) bool {
	if cfg.Validator == nil {
		return true
	}
	if err := cfg.Validator.ValidateTenant(tenantID); err != nil {
		log := cfg.Logger
		if log == nil {
			log = logger.FromContext(c.Request.Context())
		}
		log.Warn("Tenant validation failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		respondUnauthorized(c, "Invalid or inactive tenant")
		return false
	}
	return true
}

func bindTenant(c *gin.Context, cfg TenantMiddlewareConfig, tenantID, source string) {
	c.Set(TenantIDKey, tenantID)

	ctx := c.Request.Context()
	ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
	c.Request = c.Request.WithContext(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Debug("Tenant identified",
			zap.String("tenant_id", tenantID),
			zap.String("method", source),
		)
	}
}

// extractTenantFromSubdomain extracts the tenant from the subdomain,
// e.g. "lumiere.salonsuite.io" with baseDomain "salonsuite.io" returns "lumiere".
func extractTenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}

	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}
	return strings.Split(subdomain, ".")[0]
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}

// GetTenantID returns the resolved tenant ID, or "" when the request
// has none.
func GetTenantID(c *gin.Context) string {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetTenantUUID returns the resolved tenant ID parsed as a UUID.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}
