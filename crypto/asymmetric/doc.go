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

/*
Package asymmetric wraps the secp256k1 primitives of go-ethereum for SecretLedger.

Private keys sign 32-byte digests and produce 65-byte recoverable signatures
in [R || S || V] form with V in {0, 1}. The signer address of a digest can be
recovered from the signature alone, which is how owners and wallets are
identified across the ledger, the vault and the pouch client.
*/
package asymmetric
