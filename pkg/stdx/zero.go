package stdx

// Zero returns the zero value for the type parameter T.
// This is useful in generic code where you need to return
// a zero value alongside an error.
func Zero[T any]() T {
	var t T
	return t
}
