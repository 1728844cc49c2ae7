package utils

// Value dereferences v, returning the zero value for nil
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// NonEmpty points at s, or is nil when s is empty. Optional profile fields use it so that
// an empty string and a missing key encode the same way.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return Ptr(s)
}
