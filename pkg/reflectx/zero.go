package reflectx

import "reflect"

// IsZero reports whether v is the zero value for its type, following
// pointers and interfaces to the value they wrap.
func IsZero(v any) bool {
	if v == nil {
		return true
	}

	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return true
		}
		val = val.Elem()
	}
	return val.IsZero()
}
