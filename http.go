package access

import (
	"github.com/goliatone/go-router"

	"github.com/butlerian/go-access/middleware/accessguard"
)

// RouteGuard mounts the access guard in front of product surfaces.
type RouteGuard struct {
	authority *Authority
	cfg       Config
	tokens    TokenService
	Logger    Logger
}

func NewRouteGuard(authority *Authority, tokens TokenService, cfg Config) (*RouteGuard, error) {
	return &RouteGuard{
		authority: authority,
		tokens:    tokens,
		cfg:       cfg,
		Logger:    defLogger{},
	}, nil
}

// ProtectedRoute guards a product surface: while state is resolving it
// renders nothing, unauthenticated visitors go to login, authenticated ones
// without approval go to pending.
func (g *RouteGuard) ProtectedRoute(product string) router.MiddlewareFunc {
	return accessguard.New(accessguard.Config{
		Product: product,
		SigningKey: accessguard.SigningKey{
			Key:    []byte(g.cfg.GetSigningKey()),
			JWTAlg: g.cfg.GetSigningMethod(),
		},
		AuthScheme:     g.cfg.GetAuthScheme(),
		ContextKey:     g.cfg.GetContextKey(),
		TokenLookup:    g.cfg.GetTokenLookup(),
		TokenValidator: guardValidator{tokens: g.tokens},
		Access:         authorityResolver{authority: g.authority},
	})
}

// guardValidator adapts TokenService to the guard's validator surface.
type guardValidator struct {
	tokens TokenService
}

type guardClaims struct {
	claims *SessionClaims
}

func (g guardClaims) UserID() string {
	return g.claims.GetUserID()
}

func (g guardValidator) Validate(tokenString string) (accessguard.Claims, error) {
	claims, err := g.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return guardClaims{claims: claims}, nil
}

// authorityResolver answers guard lookups from the authority's derived
// state. A token for anyone but the live session's user resolves to no
// standing.
type authorityResolver struct {
	authority *Authority
}

func (r authorityResolver) Loading() bool {
	return r.authority.Loading()
}

func (r authorityResolver) Status(userID, product string) (string, bool) {
	state := r.authority.State()
	if state.User == nil || state.User.ID.String() != userID {
		return "", false
	}

	return r.authority.AccessStatus(product)
}
