// Package auth provides authentication and authorisation for the cash card
// service.
//
// It has two roles, CARD-OWNER and NON-OWNER, and one rule: card endpoints
// need CARD-OWNER. Which cards a caller may touch is not decided here; the
// card store filters every query by the caller's username.
//
// Pieces:
//   - IdentityStore verifies credentials and creates accounts (Argon2id
//     hashes; bcrypt hashes from older deployments verify and are upgraded)
//   - CachingVerifier caches successful verifications for a short TTL
//   - Gate maps an endpoint class and an identity to allow, ErrUnauthenticated
//     or ErrForbidden
//   - TokenService issues and checks HS256 bearer tokens
package auth
