package models

import "gorm.io/datatypes"

// MergeDocument copies src over dst key by key; keys only present in dst survive.
func MergeDocument(dst datatypes.JSONMap, src map[string]any) datatypes.JSONMap {
	if dst == nil {
		dst = make(datatypes.JSONMap, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
