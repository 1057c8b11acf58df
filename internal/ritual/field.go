package ritual

import (
	"fmt"
	"strings"
)

// Field names a recognized local-document field.
type Field string

const (
	FieldID              Field = "id"
	FieldTitle           Field = "title"
	FieldTagLine         Field = "tagLine"
	FieldDescription     Field = "description"
	FieldHowItHelps      Field = "howItHelps"
	FieldSteps           Field = "steps"
	FieldLoveTypes       Field = "loveTypes"
	FieldRelationalNeeds Field = "relationalNeeds"
	FieldRitualMode      Field = "ritualMode"
	FieldRitualTones     Field = "ritualTones"
	FieldTimeTaken       Field = "timeTaken"
	FieldSemanticSummary Field = "semanticSummary"
	FieldStatus          Field = "status"
)

// SyncStatusKey is the local-document key holding Record.SyncStatus.
const SyncStatusKey = "syncStatus"

var allFields = []Field{
	FieldID,
	FieldTitle,
	FieldTagLine,
	FieldDescription,
	FieldHowItHelps,
	FieldSteps,
	FieldLoveTypes,
	FieldRelationalNeeds,
	FieldRitualMode,
	FieldRitualTones,
	FieldTimeTaken,
	FieldSemanticSummary,
	FieldStatus,
}

var listFields = map[Field]bool{
	FieldSteps:           true,
	FieldLoveTypes:       true,
	FieldRelationalNeeds: true,
	FieldRitualTones:     true,
}

// ParseField resolves a document key to a Field, rejecting unknown names.
func ParseField(name string) (Field, error) {
	trimmed := strings.TrimSpace(name)
	for _, f := range allFields {
		if string(f) == trimmed {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// IsList reports whether the field holds an ordered list of strings.
func (f Field) IsList() bool {
	return listFields[f]
}

func (f Field) String() string {
	return string(f)
}
