/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

// SignToken issues a bearer token for subject that expires at exp.
// The format is base64url(claims) "." base64url(hmac-sha256).
func SignToken(secret, subject string, exp time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(sign(secret, b)), nil
}

// VerifyToken checks signature and expiry and returns the subject.
func VerifyToken(secret, token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", fmt.Errorf("%w: format", ErrInvalidToken)
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("%w: signature", ErrInvalidToken)
	}
	if !hmac.Equal(sign(secret, payloadB), sigB) {
		return "", fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", fmt.Errorf("%w: claims", ErrInvalidToken)
	}
	if claims.Exp < time.Now().Unix() {
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if claims.Sub == "" {
		claims.Sub = "anonymous"
	}
	return claims.Sub, nil
}

// BearerSubject verifies an Authorization header value.
func BearerSubject(secret, header string) (string, error) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrInvalidToken)
	}
	return VerifyToken(secret, strings.TrimSpace(header[len(prefix):]))
}

func sign(secret string, b []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return h.Sum(nil)
}
