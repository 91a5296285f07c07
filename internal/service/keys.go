// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"fmt"

	"github.com/mkarpushin/tasksync/models"
)

// stateCollections maps the top-level collection names of a task-app state
// blob to their entity types.
var stateCollections = map[string]string{
	"tasks":    models.EntityTask,
	"projects": models.EntityProject,
	"tags":     models.EntityTag,
	"notes":    models.EntityNote,
}

// DefaultEntityKeyExtractor implements [EntityKeyExtractor] for the standard
// task-app state layout: a JSON object whose top-level collections are either
// id-keyed objects or arrays of objects carrying an "id" field. Unknown
// top-level fields are ignored.
type DefaultEntityKeyExtractor struct{}

// ExtractEntityKeys implements [EntityKeyExtractor].
func (DefaultEntityKeyExtractor) ExtractEntityKeys(state json.RawMessage) ([]string, error) {
	if len(state) == 0 {
		return nil, nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(state, &root); err != nil {
		return nil, fmt.Errorf("parse state blob: %w", err)
	}

	var keys []string
	for name, entityType := range stateCollections {
		raw, ok := root[name]
		if !ok || len(raw) == 0 {
			continue
		}

		var byID map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byID); err == nil {
			for id := range byID {
				keys = append(keys, entityType+":"+id)
			}
			continue
		}

		var list []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("parse %s collection: %w", name, err)
		}
		for _, item := range list {
			if item.ID != "" {
				keys = append(keys, entityType+":"+item.ID)
			}
		}
	}

	return keys, nil
}
