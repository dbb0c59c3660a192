// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (JWT signing and verification)
// from the domain logic. Accounts and sessions live in the identity service;
// this API only verifies the access tokens it issues.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningDisabled is returned by [TokenService.GenerateAccessToken] when the
// service was built without a private key.
var ErrSigningDisabled = errors.New("auth: token signing is not configured")

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// The user ID and role travel inside the token so the authentication
// middleware can rebuild the caller identity without a database round-trip.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID   string `json:"uid"`
	Username string `json:"unm"`
	Role     string `json:"rol"`
}

// TokenService handles generation and verification of JWT tokens using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTokenService creates a new TokenService from PEM files on disk.
//
// privateKeyPath may be empty, in which case the service can only verify.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read public key from %s: %w", publicKeyPath, err)
	}

	var privateKeyData []byte
	if privateKeyPath != "" {
		privateKeyData, err = os.ReadFile(privateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("auth: failed to read private key from %s: %w", privateKeyPath, err)
		}
	}

	return NewTokenServiceFromPEM(privateKeyData, publicKeyData, issuer)
}

// NewTokenServiceFromPEM creates a TokenService from in-memory PEM blocks.
func NewTokenServiceFromPEM(privateKeyPEM, publicKeyPEM []byte, issuer string) (*TokenService, error) {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to parse public key: %w", err)
	}

	service := &TokenService{publicKey: publicKey, issuer: issuer}

	if len(privateKeyPEM) > 0 {
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("auth: failed to parse private key: %w", err)
		}
		service.privateKey = privateKey
	}

	return service, nil
}

// GenerateAccessToken creates a new JWT access token for a user.
func (service *TokenService) GenerateAccessToken(userID, username, role string, timeToLive time.Duration) (string, error) {
	if service.privateKey == nil {
		return "", ErrSigningDisabled
	}

	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:   userID,
		Username: username,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature, issuer and validity of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	}, jwt.WithIssuer(service.issuer))

	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	return claims, nil
}
