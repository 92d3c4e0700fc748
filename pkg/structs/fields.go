// Package structs reads struct fields by name.
package structs

import (
	"github.com/oleiade/reflections"
	"github.com/pkg/errors"
)

// Project returns the values of the given fields of obj, keyed by field name.
// obj can whether be a structure or pointer to structure.
func Project(obj any, names ...string) (map[string]any, error) {
	projection := make(map[string]any, len(names))
	for _, name := range names {
		v, err := reflections.GetField(obj, name)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", name)
		}
		projection[name] = v
	}
	return projection, nil
}
