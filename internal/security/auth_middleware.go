package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recon-engine/pkg/response"
)

// AuthMiddleware wires JWT validation into gin handler chains.
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, response.UnauthorizedResponse(err.Error(), correlationID(c)))
			c.Abort()
			return
		}
		storeClaims(c, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token lacks the given role.
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, response.UnauthorizedResponse(err.Error(), correlationID(c)))
			c.Abort()
			return
		}
		if !claims.HasRole(role) {
			c.JSON(http.StatusForbidden, response.ForbiddenResponse("Insufficient permissions", correlationID(c)))
			c.Abort()
			return
		}
		storeClaims(c, claims)
		c.Next()
	}
}

// RequireAnyRole rejects requests whose token holds none of the roles.
func (am *AuthMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, response.UnauthorizedResponse(err.Error(), correlationID(c)))
			c.Abort()
			return
		}
		if !claims.HasAnyRole(roles...) {
			c.JSON(http.StatusForbidden, response.ForbiddenResponse("Insufficient permissions", correlationID(c)))
			c.Abort()
			return
		}
		storeClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present but never
// rejects the request.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := am.authenticate(c); err == nil {
			storeClaims(c, claims)
		}
		c.Next()
	}
}

func (am *AuthMiddleware) authenticate(c *gin.Context) (*Claims, error) {
	token, err := am.jwtManager.ExtractTokenFromHeader(c.GetHeader("Authorization"))
	if err != nil {
		return nil, err
	}
	return am.jwtManager.ValidateToken(token)
}

func storeClaims(c *gin.Context, claims *Claims) {
	c.Set("user_claims", claims)
	c.Set("user_id", claims.UserID)
}

func correlationID(c *gin.Context) string {
	if id, exists := c.Get("correlation_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserClaims extracts the authenticated claims from the request
// context.
func GetUserClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get("user_claims")
	if !exists {
		return nil, false
	}
	userClaims, ok := claims.(*Claims)
	return userClaims, ok
}

// GetUserID extracts the authenticated user ID from the request
// context.
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// IsAuthenticated reports whether the request carries valid claims.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("user_claims")
	return exists
}
