// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package signature

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// ErrVerification is returned when a signature feed is not signed by any
// key of the trusted keyring. Scans must not run with such a feed.
var ErrVerification = errors.New("signature feed verification failed")

const armorHeader = "-----BEGIN PGP SIGNATURE-----"

// ReadKeyring reads an armored or binary OpenPGP public keyring.
func ReadKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing keyring %s: %w", path, err)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keyring %s holds no keys", path)
	}
	return keys, nil
}

// VerifyFile checks feedPath against its detached signature. The signature
// is looked up next to the feed as "<feed>.asc" (armored) or "<feed>.sig"
// (binary). A missing signature is a verification failure.
func VerifyFile(keyring openpgp.EntityList, feedPath string) error {
	feed, err := os.ReadFile(feedPath)
	if err != nil {
		return fmt.Errorf("reading signature feed: %w", err)
	}
	sig, err := os.ReadFile(feedPath + ".asc")
	if errors.Is(err, os.ErrNotExist) {
		sig, err = os.ReadFile(feedPath + ".sig")
	}
	if err != nil {
		return fmt.Errorf("%w: %s: no detached signature: %w", ErrVerification, feedPath, err)
	}
	return Verify(keyring, feed, sig)
}

// Verify checks that sig is a valid detached signature of feed made by one
// of the keys in keyring. sig may be armored or binary.
func Verify(keyring openpgp.EntityList, feed, sig []byte) error {
	if len(keyring) == 0 {
		return fmt.Errorf("%w: empty keyring", ErrVerification)
	}
	var err error
	if bytes.HasPrefix(bytes.TrimSpace(sig), []byte(armorHeader)) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(feed), bytes.NewReader(sig), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(feed), bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return nil
}
