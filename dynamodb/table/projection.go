package table

import (
	"fmt"
	"strings"
)

type ProjectionType string

const (
	ProjectKeysOnly ProjectionType = "KEYS_ONLY"
	ProjectAll      ProjectionType = "ALL"
	// In addition to the key attributes, the index includes NonKeyAttributes.
	ProjectInclude ProjectionType = "INCLUDE"
)

// Projection describes which attributes are copied into a secondary index.
type Projection struct {
	Type             ProjectionType
	NonKeyAttributes []string
}

func KeysOnly() Projection {
	return Projection{Type: ProjectKeysOnly}
}

// ParseProjectionType accepts the DynamoDB spelling or the lower case tag spelling ("keys_only", "all", "include").
func ParseProjectionType(s string) (ProjectionType, error) {
	switch ProjectionType(strings.ToUpper(s)) {
	case ProjectKeysOnly:
		return ProjectKeysOnly, nil
	case ProjectAll:
		return ProjectAll, nil
	case ProjectInclude:
		return ProjectInclude, nil
	}
	return "", fmt.Errorf("unknown projection type %q", s)
}

func (p Projection) validate() error {
	switch p.Type {
	case ProjectKeysOnly, ProjectAll:
		if len(p.NonKeyAttributes) > 0 {
			return fmt.Errorf("projection %s does not take non-key attributes", p.Type)
		}
	case ProjectInclude:
		if len(p.NonKeyAttributes) == 0 {
			return fmt.Errorf("projection INCLUDE requires non-key attributes")
		}
	default:
		return fmt.Errorf("invalid projection type %q", p.Type)
	}
	return nil
}
