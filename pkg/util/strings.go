package util

import (
	"fmt"
	"strings"
)

// functional map: (a -> b) -> [a] -> [b]
func Map[T, U any](f func(T) U, s []T) []U {
	result := make([]U, len(s))
	for i, v := range s {
		result[i] = f(v)
	}
	return result
}

// Join renders each element with its String method and joins the results with sep.
func Join[T fmt.Stringer](s []T, sep string) string {
	return strings.Join(Map(func(v T) string { return v.String() }, s), sep)
}
