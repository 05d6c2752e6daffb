package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"deepquant/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func TestBars_InsertAndRead(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	bars := []model.MarketBar{
		{Symbol: "AAPL", Timestamp: base, Timeframe: model.Timeframe5m, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Symbol: "AAPL", Timestamp: base.Add(5 * time.Minute), Timeframe: model.Timeframe5m, Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 2000},
		{Symbol: "AAPL", Timestamp: base.Add(10 * time.Minute), Timeframe: model.Timeframe5m, Open: 101.5, High: 103, Low: 101, Close: math.NaN(), Volume: 1500},
	}
	if err := s.InsertBars(bars); err != nil {
		t.Fatalf("insert bars: %v", err)
	}

	got, err := s.RecentBars("AAPL", model.Timeframe5m, 10)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("expected chronological order, first=%v", got[0].Timestamp)
	}
	if got[1].Close != 101.5 {
		t.Errorf("expected close=101.5, got %v", got[1].Close)
	}
	if !math.IsNaN(got[2].Close) {
		t.Errorf("expected NULL close to read back as NaN, got %v", got[2].Close)
	}
}

func TestBars_ReinsertDoesNotRewrite(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	first := model.MarketBar{Symbol: "MSFT", Timestamp: ts, Timeframe: model.Timeframe5m, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	if err := s.InsertBars([]model.MarketBar{first}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second := first
	second.Close = 99
	if err := s.InsertBars([]model.MarketBar{second}); err != nil {
		t.Fatalf("re-insert: %v", err)
	}

	got, err := s.RecentBars("MSFT", model.Timeframe5m, 1)
	if err != nil {
		t.Fatalf("recent bars: %v", err)
	}
	if got[0].Close != 1.5 {
		t.Errorf("re-insert rewrote history: close=%v", got[0].Close)
	}
}

func TestIndicators_UpsertUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	row := model.IndicatorRow{
		Symbol: "NVDA", Timestamp: ts, Timeframe: model.Timeframe5m,
		RSI14: fp(55), SMA50: fp(120), ATR14: fp(2.5),
	}
	if err := s.UpsertIndicators([]model.IndicatorRow{row}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	row.RSI14 = fp(61)
	row.SMA200 = fp(110)
	if err := s.UpsertIndicators([]model.IndicatorRow{row}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if err := s.InsertBars([]model.MarketBar{{
		Symbol: "NVDA", Timestamp: ts, Timeframe: model.Timeframe5m,
		Open: 119, High: 121, Low: 118, Close: 120.5, Volume: 500,
	}}); err != nil {
		t.Fatalf("insert bar: %v", err)
	}

	snap, err := s.LatestSnapshot("NVDA")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if snap.RSI14 == nil || *snap.RSI14 != 61 {
		t.Errorf("expected rsi=61 after upsert, got %v", snap.RSI14)
	}
	if snap.Close == nil || *snap.Close != 120.5 {
		t.Errorf("expected close=120.5, got %v", snap.Close)
	}
}

func TestSignals_DuplicateEntrySuppressed(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

	sig := model.Signal{Symbol: "TSLA", Timestamp: ts, SignalType: model.SignalTrendBuy, ATR: fp(3.2)}
	ok, err := s.InsertEntrySignal(sig)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !ok {
		t.Fatal("first insert should write a row")
	}
	ok, err = s.InsertEntrySignal(sig)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if ok {
		t.Error("duplicate (symbol, timestamp) should be suppressed")
	}

	pending, err := s.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending signal, got %d", len(pending))
	}
	if pending[0].ATR == nil || *pending[0].ATR != 3.2 {
		t.Errorf("atr not preserved: %v", pending[0].ATR)
	}
	if pending[0].Size != nil {
		t.Errorf("entry signal should start unsized, got %v", *pending[0].Size)
	}
}

func TestSignals_PendingJoinsLatestClose(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	// Signal timestamp has no matching candle; a later candle exists.
	if err := s.InsertBars([]model.MarketBar{{
		Symbol: "AMZN", Timestamp: base.Add(10 * time.Minute), Timeframe: model.Timeframe5m,
		Open: 200, High: 201, Low: 199, Close: 200.25, Volume: 100,
	}}); err != nil {
		t.Fatalf("insert bar: %v", err)
	}
	if _, err := s.InsertEntrySignal(model.Signal{Symbol: "AMZN", Timestamp: base, SignalType: model.SignalVWAPScalp}); err != nil {
		t.Fatalf("insert signal: %v", err)
	}
	if _, err := s.InsertEntrySignal(model.Signal{Symbol: "META", Timestamp: base, SignalType: model.SignalVWAPScalp}); err != nil {
		t.Fatalf("insert signal: %v", err)
	}

	pending, err := s.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	bySym := map[string]PendingSignal{}
	for _, p := range pending {
		bySym[p.Symbol] = p
	}
	if p := bySym["AMZN"]; p.Close == nil || *p.Close != 200.25 {
		t.Errorf("expected latest close 200.25 for AMZN, got %v", p.Close)
	}
	if p := bySym["META"]; p.Close != nil {
		t.Errorf("symbol with no market data should have nil close, got %v", *p.Close)
	}
}

func TestSignals_ApplySizingIsAtomic(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	okID := insertSignal(t, s, "AAPL", base)
	oldID := insertSignal(t, s, "GOOGL", base.Add(time.Minute))

	if err := s.ApplySizing(
		[]SizedUpdate{{ID: okID, Size: 7}},
		[]int64{oldID},
	); err != nil {
		t.Fatalf("apply sizing: %v", err)
	}

	sized, err := s.SizedSignals()
	if err != nil {
		t.Fatalf("sized: %v", err)
	}
	if len(sized) != 1 || sized[0].ID != okID {
		t.Fatalf("expected exactly the sized signal, got %+v", sized)
	}
	if sized[0].Size == nil || *sized[0].Size != 7 {
		t.Errorf("size not persisted: %v", sized[0].Size)
	}

	pending, err := s.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending left, got %d", len(pending))
	}
}

func TestSignals_SubmitAndCount(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	id := insertSignal(t, s, "NVDA", ts)

	if err := s.ApplySizing([]SizedUpdate{{ID: id, Size: 3}}, nil); err != nil {
		t.Fatalf("size: %v", err)
	}
	if err := s.MarkSubmitted(id, "order-abc"); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	n, err := s.CountSubmitted()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 submitted, got %d", n)
	}
	subs, err := s.SubmittedSignals()
	if err != nil {
		t.Fatalf("submitted: %v", err)
	}
	if subs[0].OrderID == nil || *subs[0].OrderID != "order-abc" {
		t.Errorf("order id not persisted: %v", subs[0].OrderID)
	}

	if err := s.UpdateSignalStatus(id, model.StatusExecuted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	n, _ = s.CountSubmitted()
	if n != 0 {
		t.Errorf("expected 0 submitted after execution, got %d", n)
	}
}

func TestSignals_ExitDedupByPendingExit(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)

	has, err := s.HasPendingExit("AAPL")
	if err != nil {
		t.Fatalf("has pending exit: %v", err)
	}
	if has {
		t.Fatal("empty table should have no pending exit")
	}

	if _, err := s.InsertExitSignal(model.Signal{Symbol: "AAPL", Timestamp: ts, SignalType: model.SignalPanicExit}); err != nil {
		t.Fatalf("insert exit: %v", err)
	}
	has, err = s.HasPendingExit("AAPL")
	if err != nil {
		t.Fatalf("has pending exit: %v", err)
	}
	if !has {
		t.Error("expected pending exit to be visible")
	}

	// Entry signals never count as exits.
	if _, err := s.InsertEntrySignal(model.Signal{Symbol: "MSFT", Timestamp: ts, SignalType: model.SignalTrendBuy}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	has, _ = s.HasPendingExit("MSFT")
	if has {
		t.Error("entry signal misread as exit")
	}

	pending, err := s.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	for _, p := range pending {
		if p.SignalType == model.SignalPanicExit {
			if p.Size == nil || *p.Size != 0 {
				t.Errorf("exit signal should carry the size-0 sentinel, got %v", p.Size)
			}
		}
	}
}

func TestForecasts_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	f := model.Forecast{
		Symbol: "AAPL", Timestamp: ts, CurrentPrice: 100,
		SmallPredictedPrice: 101, LargePredictedPrice: 102,
		EnsemblePredictedPrice: 101.7, EnsemblePctChange: 1.7,
	}
	if err := s.UpsertForecasts([]model.Forecast{f}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	f.EnsemblePctChange = -0.4
	if err := s.UpsertForecasts([]model.Forecast{f}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	pct, err := s.LatestEnsemblePct("AAPL")
	if err != nil {
		t.Fatalf("latest pct: %v", err)
	}
	if pct == nil || *pct != -0.4 {
		t.Errorf("expected replaced pct=-0.4, got %v", pct)
	}
}

func TestSysConfig_DefaultAndOverride(t *testing.T) {
	s := openTestStore(t)

	mode, err := s.ConfigValue("sleep_mode", "AUTO")
	if err != nil {
		t.Fatalf("config value: %v", err)
	}
	if mode != "AUTO" {
		t.Errorf("schema should seed sleep_mode=AUTO, got %q", mode)
	}

	if err := s.SetConfigValue("sleep_mode", "FORCE_AWAKE"); err != nil {
		t.Fatalf("set: %v", err)
	}
	mode, _ = s.ConfigValue("sleep_mode", "AUTO")
	if mode != "FORCE_AWAKE" {
		t.Errorf("expected override, got %q", mode)
	}

	missing, _ := s.ConfigValue("no_such_key", "fallback")
	if missing != "fallback" {
		t.Errorf("expected fallback for missing key, got %q", missing)
	}
}

func TestExecutedTrades_Insert(t *testing.T) {
	s := openTestStore(t)
	err := s.InsertExecutedTrade(model.ExecutedTrade{
		Symbol: "AAPL", Timestamp: time.Now().UTC(),
		Price: 187.5, Qty: 5, Side: "buy", SignalType: model.SignalTrendBuy,
	})
	if err != nil {
		t.Fatalf("insert trade: %v", err)
	}
}

func insertSignal(t *testing.T, s *Store, symbol string, ts time.Time) int64 {
	t.Helper()
	if _, err := s.InsertEntrySignal(model.Signal{Symbol: symbol, Timestamp: ts, SignalType: model.SignalTrendBuy, ATR: fp(1)}); err != nil {
		t.Fatalf("insert %s: %v", symbol, err)
	}
	pending, err := s.PendingSignals()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	for _, p := range pending {
		if p.Symbol == symbol {
			return p.ID
		}
	}
	t.Fatalf("signal for %s not found", symbol)
	return 0
}
