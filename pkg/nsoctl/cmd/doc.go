// Package cmd implements the cobra command tree for the nsoctl CLI:
// configuration, the account login flow, credential inspection and sync,
// Coral service calls, and shell completion.
package cmd
