package cadence

import (
	"context"
	"time"
)

// Sleep mode override values stored under the sleep_mode config key.
const (
	ModeAuto       = "AUTO"
	ModeForceAwake = "FORCE_AWAKE"
	ModeForceSleep = "FORCE_SLEEP"
)

// ModeSource reads the operator override. *store.Store satisfies it via
// ConfigValue.
type ModeSource interface {
	ConfigValue(key, fallback string) (string, error)
}

// Controller computes sleep durations from market hours, the operator's
// sleep_mode override, and the worker's active/passive settings.
type Controller struct {
	Modes   ModeSource
	Active  time.Duration
	Passive time.Duration

	// test seams
	now  func() time.Time
	tick func(time.Duration)
}

// New builds a Controller with the given active and passive sleeps.
func New(modes ModeSource, active, passive time.Duration) *Controller {
	return &Controller{
		Modes:   modes,
		Active:  active,
		Passive: passive,
		now:     time.Now,
		tick:    time.Sleep,
	}
}

// Mode returns the current sleep_mode, defaulting to AUTO when the key
// is missing or unreadable.
func (c *Controller) Mode() string {
	mode, err := c.Modes.ConfigValue("sleep_mode", ModeAuto)
	if err != nil {
		return ModeAuto
	}
	switch mode {
	case ModeForceAwake, ModeForceSleep:
		return mode
	default:
		return ModeAuto
	}
}

// SleepDuration returns how long the worker should sleep before its next
// cycle. FORCE_AWAKE pins the active cadence and FORCE_SLEEP the passive
// one regardless of the clock. In AUTO, an open market yields the active
// sleep; a closed market sleeps until the next open, capped at the
// passive sleep.
func (c *Controller) SleepDuration() time.Duration {
	switch c.Mode() {
	case ModeForceAwake:
		return c.Active
	case ModeForceSleep:
		return c.Passive
	}

	now := c.now()
	if IsMarketOpen(now) {
		return c.Active
	}
	untilOpen := TimeUntilOpen(now)
	if untilOpen < c.Passive {
		return untilOpen
	}
	return c.Passive
}

// NextCandleDelay returns the time until the next wall-clock multiple of
// interval, plus offset. Workers that consume candles wake shortly after
// the candle lands rather than on arbitrary boundaries.
func (c *Controller) NextCandleDelay(interval, offset time.Duration) time.Duration {
	now := c.now()
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now) + offset
}

// Sleep sleeps for total in 1s ticks. Sleeps longer than the active
// cadence are interruptible: the sleep_mode key is re-read after every
// tick and FORCE_AWAKE cuts the sleep short within a second.
// Cancellation of ctx ends the sleep immediately.
func (c *Controller) Sleep(ctx context.Context, total time.Duration) {
	if total <= 0 {
		return
	}
	interruptible := total > c.Active
	remaining := total
	for remaining > 0 {
		if ctx.Err() != nil {
			return
		}
		step := time.Second
		if remaining < step {
			step = remaining
		}
		c.tick(step)
		remaining -= step
		if interruptible && c.Mode() == ModeForceAwake {
			return
		}
	}
}
