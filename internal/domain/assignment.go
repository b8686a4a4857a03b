package domain

// Assignment is a raw record produced by an external static scan
// (TODO/FIXME extraction). The bridge normalizes assignments into Task
// entries; the scanner itself is out of scope.
//
// Example JSON representation:
//
//	{
//	    "id": "a1b2c3",
//	    "file": "Sources/Keychain.swift",
//	    "line": 42,
//	    "text": "TODO: handle duplicate item error",
//	    "agent": "security_agent"
//	}
type Assignment struct {
	// ID identifies the assignment at its source. The bridge derives the
	// task id from it so repeated bridge runs are idempotent.
	ID string `json:"id"`

	// File is the path the scanner found the item in.
	File string `json:"file"`

	// Line is the 1-based line number of the item.
	Line int `json:"line"`

	// Text is the raw scanned text.
	Text string `json:"text"`

	// Agent is the scanner's suggested handler (e.g. "testing_agent").
	// Unknown names map to the debug task type rather than being dropped.
	Agent string `json:"agent"`

	// Priority is the scanner's urgency estimate. Lower is more urgent.
	// Zero means unspecified; the bridge applies a default.
	Priority int `json:"priority,omitempty"`
}
