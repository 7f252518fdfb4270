package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies a reasoning call whose instructions can be overridden.
type Stage string

const (
	// StageCheck grades a whiteboard snapshot.
	StageCheck Stage = "check"
	// StageReply produces the next conversational turn.
	StageReply Stage = "reply"
	// StageQuestion poses a question for the student to answer.
	StageQuestion Stage = "question"
	// StageEvaluate judges an answer to a posed question.
	StageEvaluate Stage = "evaluate"
	// StageReview writes the fuller final feedback after a session completes.
	StageReview Stage = "review"
)

var stages = []Stage{
	StageCheck,
	StageReply,
	StageQuestion,
	StageEvaluate,
	StageReview,
}

var purposes = map[Stage]string{
	StageCheck:    "Grades a whiteboard snapshot against the problem",
	StageReply:    "Produces the tutor's next spoken turn",
	StageQuestion: "Poses a question the student answers out loud",
	StageEvaluate: "Judges the student's answer to a posed question",
	StageReview:   "Writes the summary shown after a solved problem",
}

// Purpose describes what the reasoning call of a stage does.
func Purpose(stage Stage) string {
	return purposes[stage]
}

// Stages returns the list of valid stages.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
