// Package monitor implements the live cluster dashboard behind `cw watch`.
//
// The dashboard is a Bubble Tea program over a session's store. It never
// writes to the store itself: it re-renders whenever the store signals a
// change, and the refresh, reconnect and dismiss keys go through the
// session and the alert queue.
//
// # Layout
//
//	cw watch | ● live | degraded | 2/3 nodes healthy | 3 models | v0.3.0
//	╭ Nodes ─────────────────────────────────────────────╮
//	│ node-1 healthy cpu ███░░░░░░░  31%  mem ...         │
//	╰─────────────────────────────────────────────────────╯
//	  Models, Metrics (sparklines) and Alerts follow.
//	q quit | r refresh | R reconnect | d dismiss | ? help
//
// When stdout is not a terminal, RunPlain prints one summary line per
// change instead.
package monitor
