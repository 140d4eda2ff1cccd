package jwttoken

import (
	authmw "github.com/NogaLive/SNIUGB/pkg/platform/middleware/auth"
	"github.com/NogaLive/SNIUGB/pkg/requestcontext"
)

func ToMiddlewareClaims(claims *Claims) *authmw.JWTClaims {
	role := requestcontext.Role(claims.Role)
	if role != requestcontext.RoleAdmin {
		role = requestcontext.RoleProducer
	}
	return &authmw.JWTClaims{
		UserID: claims.Subject,
		Role:   role,
	}
}

// JWTServiceAdapter exposes JWTService through the middleware's validator interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
