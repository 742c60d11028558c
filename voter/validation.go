// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package voter

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/alethea-net/oracle/alethea"
)

// ValidateName checks an optional display name. An empty string means the
// name was not provided and is accepted.
func ValidateName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > alethea.MaxNameLength {
		return errors.Errorf("name too long (max %d characters)", alethea.MaxNameLength)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '-' && r != '_' {
			return errors.New("name contains invalid characters")
		}
	}
	return nil
}

// ValidateMetadataURL checks an optional metadata URL. An empty string means
// the URL was not provided and is accepted.
func ValidateMetadataURL(url string) error {
	if url == "" {
		return nil
	}
	if len(url) > alethea.MaxMetadataURLLength {
		return errors.Errorf("metadata URL too long (max %d characters)", alethea.MaxMetadataURLLength)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "ipfs://") {
		return errors.New("metadata URL must start with http://, https://, or ipfs://")
	}
	return nil
}
