package model

import "testing"

func TestCanTransition_LegalPaths(t *testing.T) {
	legal := []struct{ from, to SignalStatus }{
		{StatusPending, StatusSized},
		{StatusPending, StatusExpired},
		{StatusSized, StatusSubmitted},
		{StatusSized, StatusExecuted}, // exit signals skip SUBMITTED
		{StatusSized, StatusFailed},
		{StatusSubmitted, StatusExecuted},
		{StatusSubmitted, StatusExecutedNoStop},
		{StatusSubmitted, StatusFailed},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransition_ForbidsReverseAndTerminal(t *testing.T) {
	illegal := []struct{ from, to SignalStatus }{
		{StatusSized, StatusPending},
		{StatusSubmitted, StatusSized},
		{StatusExecuted, StatusPending},
		{StatusExecuted, StatusSubmitted},
		{StatusExpired, StatusSized},
		{StatusFailed, StatusSubmitted},
		{StatusExecutedNoStop, StatusExecuted},
		{StatusPending, StatusSubmitted}, // must pass through SIZED
		{StatusPending, StatusExecuted},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestSignalType_IsExit(t *testing.T) {
	if SignalVWAPScalp.IsExit() || SignalDeepValueBuy.IsExit() || SignalTrendBuy.IsExit() {
		t.Error("entry types must not be exits")
	}
	if !SignalTakeProfit.IsExit() || !SignalPanicExit.IsExit() {
		t.Error("exit types must report IsExit")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	const s = "2026-03-02T14:35:00Z"
	ts, err := ParseTime(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := FormatTime(ts); got != s {
		t.Errorf("round trip: got %s, want %s", got, s)
	}
}
