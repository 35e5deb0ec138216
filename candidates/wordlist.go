// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package candidates

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadWordlist reads wordlist entries line by line, in order. Line endings
// (including CRLF) and surrounding blanks are removed and empty lines dropped;
// duplicates are kept.
func ReadWordlist(r io.Reader) ([]string, error) {
	entries := []string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read wordlist: %w", err)
	}
	return entries, nil
}

// LoadWordlist reads all wordlist entries from the named file.
func LoadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open wordlist: %w", err)
	}
	defer f.Close()
	return ReadWordlist(f)
}
