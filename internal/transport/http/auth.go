package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// RoleAdmin gates the dashboard endpoints.
	RoleAdmin = "admin"
	// RoleParticipant gates quiz-taking.
	RoleParticipant = "participant"

	contextRole = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// Credential is one fixed username/password pair.
type Credential struct {
	Username string
	Password string
}

// RoleCredentials holds the two pairs that gate the two views.
type RoleCredentials struct {
	Admin       Credential
	Participant Credential
}

// roleFor resolves a login attempt to a role, or empty when it matches
// neither pair.
func (rc RoleCredentials) roleFor(username, password string) string {
	switch {
	case username == rc.Admin.Username && password == rc.Admin.Password:
		return RoleAdmin
	case username == rc.Participant.Username && password == rc.Participant.Password:
		return RoleParticipant
	}
	return ""
}

// Claims carries the role granted at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 role tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a token for the role.
func (s *TokenService) Issue(role string) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// loginHandler checks the fixed credential pairs and issues a role token.
func loginHandler(tokens *TokenService, creds RoleCredentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "username and password required")
			return
		}
		role := creds.roleFor(req.Username, req.Password)
		if role == "" {
			respondError(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, err := tokens.Issue(role)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "issue token")
			return
		}
		respondOK(c, loginResponse{Token: token, Role: role})
	}
}

// requireRole validates the bearer token and allows only the given roles.
func requireRole(tokens *TokenService, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, http.StatusUnauthorized, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(c, http.StatusUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := tokens.Validate(parts[1])
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			respondError(c, http.StatusForbidden, "insufficient permissions")
			c.Abort()
			return
		}
		c.Set(contextRole, claims.Role)
		c.Next()
	}
}
