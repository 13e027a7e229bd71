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

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService = "GoWhiteboard"
	keyringSecret  = "backend_secret"
)

// ErrNoSecret is returned when the keyring holds no backend secret.
var ErrNoSecret = errors.New("no backend secret stored")

// SecretStore abstracts the keyring so tests can replace it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// GetSecret returns the backend password or token.
func GetSecret() (string, error) {
	v, err := secretStore.Get(keyringService, keyringSecret)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSecret
	}
	return v, err
}

// SetSecret stores the backend password or token.
func SetSecret(v string) error { return secretStore.Set(keyringService, keyringSecret, v) }

// DeleteSecret removes the stored secret; a missing entry is not an error.
func DeleteSecret() error {
	err := secretStore.Delete(keyringService, keyringSecret)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
