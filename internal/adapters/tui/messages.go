package tui

import "time"

// MsgSnapshot delivers a fresh snapshot to the model.
type MsgSnapshot struct {
	Snapshot Snapshot
}

// MsgPollError reports a failed poll. The previous snapshot stays on screen.
type MsgPollError struct {
	Err error
	At  time.Time
}

type msgTick struct{}
