// Package auth provides user accounts, password hashing, and JWT tokens
// for the garage relay's REST and WebSocket surfaces.
//
// Passwords are hashed with Argon2id in PHC string format. Access tokens
// are HS256 JWTs validated by signature only (no database hit). Observer
// WebSocket connections authenticate with a short-lived ticket token
// minted from a valid access token, since browsers cannot set headers
// on WebSocket upgrade requests.
package auth
