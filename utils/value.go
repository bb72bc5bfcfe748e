package utils

import "reflect"

// AssertType attempts to assert that the given interface argument is
// the given type parameter.
func AssertType[T any](from interface{}) (T, error) {
	var zero T
	asserted, ok := from.(T)
	if !ok {
		if expected := reflect.TypeOf((*T)(nil)).Elem(); expected.Kind() == reflect.Interface {
			return zero, NewUnimplementedInterfaceError(expected.String(), from)
		}
		return zero, NewUnexpectedTypeError(zero, from)
	}
	return asserted, nil
}
