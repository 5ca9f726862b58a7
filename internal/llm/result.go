package llm

// Result tags a value with how it was produced. Components that fall
// back to static behavior when the model misbehaves return one of
// these so callers can tell a real answer from a degraded one.
type Result[T any] struct {
	Value          T
	FallbackReason string
}

// Ok wraps a model-produced value.
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Fallback wraps a statically produced value and records why the model
// path was abandoned.
func Fallback[T any](value T, reason string) Result[T] {
	return Result[T]{Value: value, FallbackReason: reason}
}

// Degraded reports whether the value came from the fallback path.
func (r Result[T]) Degraded() bool {
	return r.FallbackReason != ""
}
