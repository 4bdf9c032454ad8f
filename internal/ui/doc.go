// Package ui renders the ocupado dashboard with Bubble Tea.
//
// The model never talks to the monitor directly. A tick every PollTick
// fetches a state.Snapshot from the store and the view is a pure function of
// that snapshot plus local UI state (theme, help overlay, terminal width).
//
// Layout:
//
//	ocupado  1 open  Online
//	 [   open   ]  Toilet 1      e00fce68...
//	 [  closed  ]  Toilet 2      e00fce69...
//	 [disconnected] Shower       e00fce6a...
//	h/? Toggle help  T Cycle theme  q Quit  Nightfox
//
// Pressing l shows the tail of the log file (package logtail) under the
// device list, re-read on every tick while visible.
//
// Cycling the theme saves it through package prefs on a command goroutine so
// Update never blocks on disk.
package ui
