package access

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
)

// GetSession extracts the validated session a middleware stored in fiber
// locals.
func GetSession(c *fiber.Ctx, key string) (*SessionObject, error) {
	return sessionFromLocals(c.Locals(key))
}

// GetRouterSession is the router agnostic variant of GetSession.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	return sessionFromLocals(c.Locals(key))
}

func sessionFromLocals(v any) (*SessionObject, error) {
	if v == nil {
		return nil, ErrUnableToFindSession
	}

	switch t := v.(type) {
	case *SessionObject:
		return t, nil
	case *SessionClaims:
		return sessionFromClaims(t, "")
	case *jwt.Token:
		if t == nil {
			return nil, ErrUnableToDecodeSession
		}
		switch claims := t.Claims.(type) {
		case *SessionClaims:
			return sessionFromClaims(claims, t.Raw)
		case jwt.MapClaims:
			return sessionFromMapClaims(claims, t.Raw)
		}
		return nil, ErrUnableToMapClaims
	}

	return nil, ErrUnableToDecodeSession
}

func sessionFromMapClaims(claims jwt.MapClaims, raw string) (*SessionObject, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrUnableToParseData
	}

	if uid, ok := claims["uid"].(string); ok && uid != "" {
		sub = uid
	}

	email, _ := claims["email"].(string)

	session := &SessionObject{
		UserID:      sub,
		Email:       email,
		AccessToken: raw,
	}

	if eat, err := claims.GetExpirationTime(); err == nil && eat != nil {
		session.ExpirationDate = &eat.Time
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}

	if metadata, ok := claims["metadata"].(map[string]any); ok {
		session.Data = map[string]any{"metadata": metadata}
	}

	return session, nil
}
