// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"anica/internal/logging"
)

func main() {
	logging.Configure(1)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "discover":
		code = runDiscover(os.Args[2:])
	case "generalize":
		code = runGeneralize(os.Args[2:])
	case "check-predictors":
		code = runCheckPredictors(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		fmt.Printf("anica: unknown command %q\n", os.Args[1])
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Println("Usage: anica <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  discover --config <file> [--check-config] [--loop] [--split-configs] [--seed N] <outdir>")
	fmt.Println("  generalize --config <file> [--seed N] [--no-minimize] [--no-restrict-to-supported] [--interactive] [--output DIR] <asm_file> <predictor_id>...")
	fmt.Println("  check-predictors --config <file> [--write-filter] [--batch-size N] [<predictor_id> ...]")
}
