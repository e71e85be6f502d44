// Package cli implements the cw command-line interface.
//
// Each cobra command is a thin shell: it loads config, opens a
// session.Session and hands off to the packages that do the work.
//
//	cw watch                  - Live dashboard (or summary lines with --plain)
//	cw snapshot               - Fetch everything once over REST
//	cw export FILE            - Save a snapshot for later --from use
//	cw model|node|user ...    - Run an action and refresh what it touched
//	cw mock-server            - Local fake cluster for demos and tests
//	cw init                   - Create .cw.yaml
//	cw doctor                 - Check config, cluster and terminal
//	cw prefs [show|set]       - Theme and remembered username
//
// # Flag Handling
//
// Global flags (--config, --server, --token, --log-level, --json) are
// defined on the root command. --server and --token override the config
// file after it is loaded, before validation.
//
// With --json every command writes a single envelope to stdout, and
// failures carry a stable error code (see ErrorToJSON).
package cli
