/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package kms stores secp256k1 private keys in password protected key files.
//
// A key file is a single line "<hex salt>:<sl1 ciphertext>". The sl1 key
// material is PBKDF2-SHA256(password, salt) and the plaintext is the hex of
// sha256(key) followed by the 32-byte key.
package kms
