package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// authorizeWS validates the bearer token on a WebSocket upgrade request.
// Browsers cannot set headers on WebSocket connections, so a "token" query
// parameter is accepted as an alternative to the Authorization header.
func (g *Gateway) authorizeWS(req *http.Request) error {
	tokenString := ""

	if authHeader := req.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fmt.Errorf("invalid authorization format")
		}
		tokenString = parts[1]
	} else {
		tokenString = req.URL.Query().Get("token")
	}

	if tokenString == "" {
		return fmt.Errorf("missing token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.cfg.JWTSecret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
