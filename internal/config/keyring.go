/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService   = "SceneWriter"
	keyringToken     = "backend_token"
	keyringPGPass    = "postgres_password"
	keyringServerKey = "server_secret"
)

// TokenStore abstracts the OS keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keyring backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = ts
	return prev
}

// Secret names accepted by GetSecret, SetSecret and DeleteSecret.
const (
	SecretBackendToken     = keyringToken
	SecretPostgresPassword = keyringPGPass
	SecretServerKey        = keyringServerKey
)

// GetSecret reads a secret from the keychain. A missing entry is not an error.
func GetSecret(name string) (string, error) {
	v, err := tokenStore.Get(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SetSecret stores a secret in the keychain.
func SetSecret(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return tokenStore.Set(keyringService, name, value)
}

// DeleteSecret removes a secret. A missing entry is not an error.
func DeleteSecret(name string) error {
	err := tokenStore.Delete(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ServerSecret returns SW_SERVER_SECRET, falling back to the keychain.
func ServerSecret() string {
	if v := strings.TrimSpace(os.Getenv(EnvServerSecret)); v != "" {
		return v
	}
	v, _ := GetSecret(SecretServerKey)
	return v
}

// PostgresDSNWithSecret returns the configured DSN with the keychain password filled in
// when the DSN is a URL without one.
func (b BackendConfig) PostgresDSNWithSecret() string {
	dsn := strings.TrimSpace(b.PostgresDSN)
	if dsn == "" {
		return ""
	}
	pass, err := GetSecret(SecretPostgresPassword)
	if err != nil || pass == "" {
		return dsn
	}
	return withPassword(dsn, pass)
}

func withPassword(dsn, pass string) string {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), pass)
	return u.String()
}
