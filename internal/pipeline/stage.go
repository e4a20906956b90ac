package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a step of document processing.
type Stage string

const (
	StageLoad        Stage = "load"
	StageExtraction  Stage = "extraction"
	StageStructuring Stage = "structuring"
	StageValidation  Stage = "validation"
	StagePersistence Stage = "persistence"
	StageProjection  Stage = "projection"
)

// StageError identifies the step at which processing a document failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
