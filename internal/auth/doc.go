// Package auth authenticates readers of the folio gateway.
//
// Readers are principals stored in the gateway database. Each holds an
// HS256 JWT whose "sub" claim is the principal id, signed with the
// configured jwt_secret and issued by "folio-gateway token".
//
// HTTPAuthMiddleware rejects requests without a valid token for an
// approved principal. OptionalAuthMiddleware attaches the identity when
// present and otherwise continues anonymously. Handlers read the identity
// with FromContext:
//
//	authCtx := auth.FromContext(r.Context())
//	if authCtx == nil {
//		// anonymous
//	}
package auth
