// Package cli parses command-line arguments and environment defaults into
// the application's configuration and maps failures to process exit codes.
package cli
