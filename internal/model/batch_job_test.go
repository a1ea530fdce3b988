package model

import "testing"

func TestBatchTransitionAllowed(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{BatchStatusCreated, BatchStatusRunning, true},
		{BatchStatusCreated, BatchStatusSucceeded, true},
		{BatchStatusCreated, BatchStatusFailed, true},
		{BatchStatusRunning, BatchStatusSucceeded, true},
		{BatchStatusRunning, BatchStatusFailed, true},
		{BatchStatusRunning, BatchStatusCreated, false},
		{BatchStatusSucceeded, BatchStatusRunning, false},
		{BatchStatusSucceeded, BatchStatusFailed, false},
		{BatchStatusFailed, BatchStatusSucceeded, false},
		{BatchStatusFailed, BatchStatusRunning, false},
		{"bogus", BatchStatusRunning, false},
	}
	for _, c := range cases {
		if got := BatchTransitionAllowed(c.from, c.to); got != c.want {
			t.Errorf("BatchTransitionAllowed(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestBatchTerminal(t *testing.T) {
	if BatchTerminal(BatchStatusCreated) || BatchTerminal(BatchStatusRunning) {
		t.Error("created/running must not be terminal")
	}
	if !BatchTerminal(BatchStatusSucceeded) || !BatchTerminal(BatchStatusFailed) {
		t.Error("succeeded/failed must be terminal")
	}
}
