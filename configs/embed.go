// Package configs provides embedded configuration templates for pdfqa.
//
// Templates are embedded at build time so `pdfqa config init` works from
// source builds and binary releases alike.
//
// Configuration hierarchy (see internal/config Load):
//  1. Defaults (internal/config NewConfig)
//  2. User config (~/.config/pdfqa/config.yaml)
//  3. Project config (.pdfqa.yaml)
//  4. .env in the working directory
//  5. Environment variables (PDFQA_*, OPENAI_API_KEY, OPENAI_ASSISTANT_ID)
package configs

import _ "embed"

// UserConfigTemplate is written by `pdfqa config init` to
// ~/.config/pdfqa/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
