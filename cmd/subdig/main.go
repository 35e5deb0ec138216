// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	_ "github.com/thediveo/lxkns/log/logrus"
)

func main() {
	// Cobra already renders the error message, so we must not print it a
	// second time; see also: https://github.com/spf13/cobra/issues/304
	if err := newRootCmd().Execute(); err != nil {
		osExit(1)
	}
}

// For CLI unit tests...
var osExit = os.Exit
