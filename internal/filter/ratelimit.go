package filter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const globalScope = "global"

// RateLimitConfig defines rate limiting rules.
type RateLimitConfig struct {
	// Global caps submissions across all methods.
	Global *RateLimit

	// PerMethod maps RPC method names to their own caps.
	PerMethod map[string]*RateLimit
}

// RateLimit allows Max submissions in any rolling Window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// RateLimitError reports which limit was hit and how long until a slot frees
// up. It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Scope      string // "global" or the method name
	Limit      RateLimit
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	what := "global rate limit"
	if e.Scope != globalScope {
		what = fmt.Sprintf("rate limit for %q", e.Scope)
	}
	return fmt.Sprintf("%s: %s: max %d per %s, retry in %s",
		ErrRateLimited, what, e.Limit.Max, e.Limit.Window, e.RetryAfter.Round(time.Millisecond))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// window holds the admission times inside the current rolling window,
// oldest first. Callers hold RateLimitFilter.mu.
type window struct {
	times []time.Time
}

// check drops expired admissions and reports whether one more fits. When
// it does not, wait is how long until the oldest admission leaves.
func (w *window) check(limit *RateLimit, now time.Time) (ok bool, wait time.Duration) {
	cutoff := now.Add(-limit.Window)
	drop := 0
	for drop < len(w.times) && !w.times[drop].After(cutoff) {
		drop++
	}
	w.times = w.times[drop:]

	if len(w.times) < limit.Max {
		return true, 0
	}
	if len(w.times) == 0 {
		return false, limit.Window
	}
	return false, w.times[0].Sub(cutoff)
}

func (w *window) commit(now time.Time) {
	w.times = append(w.times, now)
}

// RateLimitFilter enforces per-method and global sliding-window limits.
// Both limits are checked before either is charged, so a submission
// rejected by one limit consumes no capacity in the other.
type RateLimitFilter struct {
	config RateLimitConfig
	now    func() time.Time

	mu      sync.Mutex
	global  *window
	windows map[string]*window // per method
}

// NewRateLimitFilter creates a new rate limit filter. Invalid limits are
// reported by Init.
func NewRateLimitFilter(config RateLimitConfig) *RateLimitFilter {
	f := &RateLimitFilter{config: config, now: time.Now}
	f.Reset()
	return f
}

func (f *RateLimitFilter) Name() string { return "rate_limit" }

func (f *RateLimitFilter) Init(context.Context) error {
	if err := validateLimit(globalScope, f.config.Global); err != nil {
		return err
	}
	for method, limit := range f.config.PerMethod {
		if err := validateLimit(method, limit); err != nil {
			return err
		}
	}
	f.Reset()
	return nil
}

func validateLimit(scope string, limit *RateLimit) error {
	if limit == nil {
		return nil
	}
	if limit.Max <= 0 || limit.Window <= 0 {
		return fmt.Errorf("rate limit %q: max and window must be positive, got %d per %s", scope, limit.Max, limit.Window)
	}
	return nil
}

func (f *RateLimitFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	tc := TxContextFrom(ctx)

	var method string
	if tc != nil {
		method = tc.Method
	}

	if err := f.admit(method, f.now()); err != nil {
		tc.reject("rate_limit:"+err.Scope, err.Error())
		return "", err
	}
	return chain.DoFilter(ctx, payload)
}

func (f *RateLimitFilter) Destroy() error {
	f.Reset()
	return nil
}

// admit charges one submission against every applicable limit, or none.
func (f *RateLimitFilter) admit(method string, now time.Time) *RateLimitError {
	f.mu.Lock()
	defer f.mu.Unlock()

	var perMethod *window
	limit, ok := f.config.PerMethod[method]
	if ok && method != "" && limit != nil {
		perMethod = f.windows[method]
		if perMethod == nil {
			perMethod = &window{}
			f.windows[method] = perMethod
		}
		if ok, wait := perMethod.check(limit, now); !ok {
			return &RateLimitError{Scope: method, Limit: *limit, RetryAfter: wait}
		}
	}

	if g := f.config.Global; g != nil {
		if ok, wait := f.global.check(g, now); !ok {
			return &RateLimitError{Scope: globalScope, Limit: *g, RetryAfter: wait}
		}
		f.global.commit(now)
	}
	if perMethod != nil {
		perMethod.commit(now)
	}
	return nil
}

// Reset clears all rate limit windows.
func (f *RateLimitFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = &window{}
	f.windows = make(map[string]*window)
}
