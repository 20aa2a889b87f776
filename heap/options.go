package heap

import "github.com/joshuapare/zebraheap/notify"

// config collects the construction-time knobs New applies before building a
// Heap. It is never exposed directly; callers configure it through Option
// values.
type config struct {
	notifier    notify.Notifier
	ratio       float64
	shadowRatio int32
	debugChecks bool
}

func defaultConfig() config {
	return config{
		notifier:    notify.Noop(),
		ratio:       0.25,
		shadowRatio: 8,
	}
}

// Option configures a Heap at construction time.
type Option func(*config)

// WithNotifier attaches a collaborator that receives reservation,
// internal-use, and release events. The default is a no-op notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithQuarantineRatio sets the fraction of total slabs the quarantine may
// hold; once it holds that many, Push rejects further blocks. Must be in
// [0, 1]; the
// default is 0.25. New returns ErrInvalidRatio if the value is out of
// range.
func WithQuarantineRatio(r float64) Option {
	return func(c *config) { c.ratio = r }
}

// WithShadowRatio sets the body alignment boundary (the "shadow_ratio" of
// the placement algorithm). Must be a power of two; the default is 8.
func WithShadowRatio(n int32) Option {
	return func(c *config) { c.shadowRatio = n }
}

// WithDebugChecks enables extra internal consistency assertions after
// mutating operations. It trades throughput for earlier detection of a
// corrupted free or quarantine queue and should only be enabled in tests or
// while debugging the allocator itself.
func WithDebugChecks(enabled bool) Option {
	return func(c *config) { c.debugChecks = enabled }
}
