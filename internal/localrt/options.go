package localrt

// Options configures the local runtime.
//
// Defaults:
// - MaxConcurrency: 0 (one goroutine per async field group, unbounded)
type Options struct {
	MaxConcurrency int
	Scalars        map[string]ScalarSerializer
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{Scalars: map[string]ScalarSerializer{}}
}

func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithScalar installs the serializer for a custom scalar.
func WithScalar(name string, fn ScalarSerializer) Option {
	return func(o *Options) { o.Scalars[name] = fn }
}
