// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package rbac

// toValue returns the value pointed at, or the zero value for a nil pointer.
func toValue[T any](v *T) T {
	if v == nil {
		var result T
		return result
	}
	return *v
}
