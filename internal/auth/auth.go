// Package auth resolves bearer tokens to player identities.
//
// This is a deterministic stand-in for a real identity provider: any
// non-empty token doubles as both the user id and the display name.
// Nothing downstream may assume the token is cryptographically meaningful.
package auth

import (
	"errors"

	"github.com/strifelab/lobbyd/internal/protocol"
)

var ErrInvalidToken = errors.New("invalid token")

// Validate maps a raw token to a user identity.
// TODO: decode a real token (expiry, Steam ticket) once an identity
// provider is wired in.
func Validate(token string) (protocol.UserInfo, error) {
	if token == "" {
		return protocol.UserInfo{}, ErrInvalidToken
	}
	return protocol.UserInfo{UserID: token, Name: token}, nil
}
