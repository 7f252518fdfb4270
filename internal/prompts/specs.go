package prompts

const checkSpec = `Respond with a JSON object matching this exact structure:

{
  "is_correct": false,
  "is_incomplete": false,
  "feedback": "<text>",
  "hints": ["<hint>"],
  "encouragement": "<text>",
  "speak": "<text>",
  "region": {"x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0}
}

Field constraints:
- is_correct and is_incomplete are never both true.
- feedback: one or two sentences describing the mistake. Empty when there is none.
- hints: zero to three short hints, most general first.
- encouragement: a short encouraging phrase.
- speak: a summary of at most eight words for speech, only when a definite mistake was found. Empty otherwise.
- region: the area of the image containing the mistake, as fractions of the image width and height. Omit it when there is no single location.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing.`

const replySpec = `Respond with a JSON object matching this exact structure:

{
  "text": "<reply shown on screen>",
  "speak": "<reply for speech>",
  "is_question": false
}

Field constraints:
- speak: the same reply phrased for speech, without symbols or formatting.
- is_question: true only when the reply asks the student something they should answer.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing.`

const evaluateSpec = `Respond with a JSON object matching this exact structure:

{
  "correct": false,
  "text": "<response shown on screen>",
  "speak": "<response for speech>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing.`

const reviewSpec = `Respond with a JSON object matching this exact structure:

{
  "review": "<summary>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing.`

var specs = map[Stage]string{
	StageCheck:    checkSpec,
	StageReply:    replySpec,
	StageQuestion: replySpec,
	StageEvaluate: evaluateSpec,
	StageReview:   reviewSpec,
}

// Spec returns the response specification for a stage. Specs are not
// overridable because the reasoning adapter parses against them.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
