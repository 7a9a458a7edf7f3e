package runnable

import (
	"time"
)

// Reserved configuration keys. Any other key passes through untouched so leaf
// units can interpret it.
const (
	KeyMaxConcurrency = "max_concurrency"
	KeyTags           = "tags"
	KeyMetadata       = "metadata"
	KeyCallbacks      = "callbacks"
	KeyRecursionLimit = "recursion_limit"
	KeyRunName        = "run_name"
	KeyTimeout        = "timeout"
	KeyBatchPolicy    = "batch_policy"
	KeyStreamBuffer   = "stream_buffer"
	KeyArguments      = "arguments"
)

// Built-in fallbacks used when a Config does not set the key.
const (
	DefaultMaxConcurrency = 10
	DefaultRecursionLimit = 25
	DefaultStreamBuffer   = 8
)

// Config is an ordered, persistent key-value bag. Every method that changes
// a Config returns a new value and leaves the receiver untouched, so a Config
// can be shared freely between goroutines and invocations.
//
// The zero Config is empty and ready to use.
type Config struct {
	keys   []string
	values map[string]any
}

// NewConfig builds a Config from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewConfig(keysAndValues ...any) Config {
	var c Config
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		c = c.With(key, keysAndValues[i+1])
	}
	return c
}

// Len returns the number of keys.
func (c Config) Len() int { return len(c.keys) }

// Keys returns the keys in insertion order.
func (c Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Get returns the value stored under key.
func (c Config) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// With returns a copy of c with key set to value. Reserved keys are replaced
// as-is; use Merge to combine them.
func (c Config) With(key string, value any) Config {
	next := c.clone(1)
	if _, exists := next.values[key]; !exists {
		next.keys = append(next.keys, key)
	}
	next.values[key] = value
	return next
}

// Without returns a copy of c with key removed.
func (c Config) Without(key string) Config {
	if _, ok := c.values[key]; !ok {
		return c
	}
	next := Config{
		keys:   make([]string, 0, len(c.keys)-1),
		values: make(map[string]any, len(c.values)-1),
	}
	for _, k := range c.keys {
		if k == key {
			continue
		}
		next.keys = append(next.keys, k)
		next.values[k] = c.values[k]
	}
	return next
}

// Merge overlays others on c from left to right and returns the result.
// Tags form an ordered de-duplicated union, metadata and arguments merge
// key-wise with later values winning, callbacks concatenate, and every
// other key is replaced by the later value. Merge is associative.
func (c Config) Merge(others ...Config) Config {
	out := c
	for _, o := range others {
		if o.Len() == 0 {
			continue
		}
		if out.Len() == 0 {
			out = o
			continue
		}
		next := out.clone(o.Len())
		for _, k := range o.keys {
			v := o.values[k]
			if prev, ok := next.values[k]; ok {
				v = mergeValue(k, prev, v)
			} else {
				next.keys = append(next.keys, k)
			}
			next.values[k] = v
		}
		out = next
	}
	return out
}

func mergeValue(key string, prev, next any) any {
	switch key {
	case KeyTags:
		a, _ := prev.([]string)
		b, _ := next.([]string)
		return unionStrings(a, b)
	case KeyMetadata, KeyArguments:
		a, _ := prev.(map[string]any)
		b, _ := next.(map[string]any)
		return mergeMaps(a, b)
	case KeyCallbacks:
		a, _ := prev.([]Handler)
		b, _ := next.([]Handler)
		out := make([]Handler, 0, len(a)+len(b))
		out = append(out, a...)
		return append(out, b...)
	default:
		return next
	}
}

func (c Config) clone(extra int) Config {
	next := Config{
		keys:   make([]string, len(c.keys), len(c.keys)+extra),
		values: make(map[string]any, len(c.values)+extra),
	}
	copy(next.keys, c.keys)
	for k, v := range c.values {
		next.values[k] = v
	}
	return next
}

// WithTags adds tags to the union already present.
func (c Config) WithTags(tags ...string) Config {
	return c.Merge(NewConfig(KeyTags, tags))
}

// WithMetadata merges a single metadata entry.
func (c Config) WithMetadata(key string, value any) Config {
	return c.Merge(NewConfig(KeyMetadata, map[string]any{key: value}))
}

// WithCallbacks appends handlers.
func (c Config) WithCallbacks(handlers ...Handler) Config {
	return c.Merge(NewConfig(KeyCallbacks, handlers))
}

// WithMaxConcurrency bounds batch and parallel fan-out.
func (c Config) WithMaxConcurrency(n int) Config { return c.With(KeyMaxConcurrency, n) }

// WithRecursionLimit sets how deep lambdas returning runnables may nest.
func (c Config) WithRecursionLimit(n int) Config { return c.With(KeyRecursionLimit, n) }

// WithRunName names the next run in callbacks.
func (c Config) WithRunName(name string) Config { return c.With(KeyRunName, name) }

// WithTimeout bounds every invocation made with this config.
func (c Config) WithTimeout(d time.Duration) Config { return c.With(KeyTimeout, d) }

// WithBatchPolicy selects how Batch reacts to failed inputs.
func (c Config) WithBatchPolicy(p BatchPolicy) Config { return c.With(KeyBatchPolicy, p) }

// WithStreamBuffer sets the chunk channel capacity of streams.
func (c Config) WithStreamBuffer(n int) Config { return c.With(KeyStreamBuffer, n) }

// Tags returns the tags union.
func (c Config) Tags() []string {
	tags, _ := c.values[KeyTags].([]string)
	return append([]string(nil), tags...)
}

// Metadata returns a copy of the metadata map.
func (c Config) Metadata() map[string]any {
	md, _ := c.values[KeyMetadata].(map[string]any)
	return mergeMaps(nil, md)
}

// Arguments returns a copy of the bound arguments.
func (c Config) Arguments() map[string]any {
	args, _ := c.values[KeyArguments].(map[string]any)
	return mergeMaps(nil, args)
}

// Callbacks returns the registered handlers.
func (c Config) Callbacks() []Handler {
	hs, _ := c.values[KeyCallbacks].([]Handler)
	return append([]Handler(nil), hs...)
}

// MaxConcurrency returns the fan-out bound.
func (c Config) MaxConcurrency() int {
	return c.positiveInt(KeyMaxConcurrency, DefaultMaxConcurrency)
}

// RecursionLimit returns the recursion limit.
func (c Config) RecursionLimit() int {
	if n, ok := c.values[KeyRecursionLimit].(int); ok {
		return n
	}
	return DefaultRecursionLimit
}

// RunName returns the run name override, if any.
func (c Config) RunName() string {
	name, _ := c.values[KeyRunName].(string)
	return name
}

// Timeout returns the per-invocation deadline; zero means none.
func (c Config) Timeout() time.Duration {
	d, _ := c.values[KeyTimeout].(time.Duration)
	return d
}

// BatchPolicy returns the configured batch policy.
func (c Config) BatchPolicy() BatchPolicy {
	p, _ := c.values[KeyBatchPolicy].(BatchPolicy)
	return p
}

// StreamBuffer returns the chunk channel capacity.
func (c Config) StreamBuffer() int {
	return c.positiveInt(KeyStreamBuffer, DefaultStreamBuffer)
}

func (c Config) positiveInt(key string, fallback int) int {
	if n, ok := c.values[key].(int); ok && n > 0 {
		return n
	}
	return fallback
}

// forChild prepares the config a composite passes to one of its children.
// The run name and timeout apply only to the node they were given to; the
// deadline itself is already carried by the child's context.
func (c Config) forChild() Config {
	return c.Without(KeyRunName).Without(KeyTimeout)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func mergeMaps(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
