// Package main is the entry point for the pdfqa CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/pdfqa/cmd/pdfqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
