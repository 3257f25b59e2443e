// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"

	"github.com/fatih/color"

	"anica/internal/anicaerr"
)

// exitCode maps an error onto the exit codes spec §6.3 fixes for discover:
// 0 normal, 1 config error, 2 any other fatal error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := anicaerr.As(err, anicaerr.KindConfig); ok {
		return 1
	}
	return 2
}

// reportError prints err the way main.go/cmd/kanso-cli's reportParseError
// prints a parse failure: red, with the structured code and any notes an
// anicaerr.Error carries.
func reportError(err error) {
	ae, ok := err.(*anicaerr.Error)
	if !ok {
		color.Red("error: %s", err)
		return
	}
	color.Red("%s[%s]: %s", ae.Kind, ae.Code, ae.Message)
	for _, note := range ae.Notes {
		fmt.Println("  note:", note)
	}
	if ae.Cause != nil {
		fmt.Println("  cause:", ae.Cause)
	}
}
