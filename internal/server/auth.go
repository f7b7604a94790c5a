/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Tokens are base64url(claims JSON) "." base64url(HMAC-SHA256(claims)).
type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

var (
	errTokenFormat    = errors.New("invalid token format")
	errTokenSignature = errors.New("bad signature")
	errTokenExpired   = errors.New("token expired")
)

// SignToken issues a bearer token for subject valid until exp.
func SignToken(secret, subject string, exp time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// VerifyToken checks token against secret at now and returns its subject.
func VerifyToken(secret, token string, now time.Time) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errTokenFormat
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errTokenFormat
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errTokenFormat
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errTokenSignature
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", errTokenFormat
	}
	if claims.Exp < now.Unix() {
		return "", errTokenExpired
	}
	if claims.Sub == "" {
		claims.Sub = "anonymous"
	}
	return claims.Sub, nil
}

type subjectKey struct{}

// SubjectFromContext returns the authenticated subject of a request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

// requireToken rejects requests without a valid bearer token.
func requireToken(secret string, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "bearer "
			if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
				writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}
			sub, err := VerifyToken(secret, strings.TrimSpace(auth[len(prefix):]), now())
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
		})
	}
}
