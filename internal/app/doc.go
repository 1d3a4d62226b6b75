// Package app wires the scene loader, the reconciler and the reload
// publishers into a runnable application, independent of the CLI that
// configures it.
package app
