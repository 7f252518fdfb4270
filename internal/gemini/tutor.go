package gemini

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/prompts"
)

type checkResult struct {
	IsCorrect     bool             `json:"is_correct"`
	IsIncomplete  bool             `json:"is_incomplete"`
	Feedback      string           `json:"feedback"`
	Hints         []string         `json:"hints"`
	Encouragement string           `json:"encouragement"`
	Speak         string           `json:"speak"`
	Region        *analysis.Region `json:"region"`
}

type reviewResult struct {
	Review string `json:"review"`
}

// Analyze grades a snapshot of the student's work against the problem.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (analysis.Verdict, error) {
	sections := []prompts.Section{
		{Title: "Problem", Body: req.Problem},
		{Title: "Feedback already given", Body: req.PreviousFeedback},
		{Title: "About the student", Body: req.Context},
	}

	parts := []genai.Part{genai.Text("Check the student's work in this image.")}
	if !req.Image.Empty() {
		parts = append(parts, genai.Blob{MIMEType: req.Image.MIME, Data: req.Image.Data})
	}

	r, err := call[checkResult](ctx, c, prompts.StageCheck, sections, parts...)
	if err != nil {
		return analysis.Verdict{}, err
	}

	return analysis.Verdict{
		IsCorrect:     r.IsCorrect,
		IsIncomplete:  r.IsIncomplete,
		Feedback:      strings.TrimSpace(r.Feedback),
		Hints:         r.Hints,
		Encouragement: strings.TrimSpace(r.Encouragement),
		Speak:         strings.TrimSpace(r.Speak),
		Region:        r.Region,
	}, nil
}

// Reply produces the tutor's next turn, or a question for the student when
// req.WantQuestion is set.
func (c *Client) Reply(ctx context.Context, req conversation.ReplyRequest) (conversation.Reply, error) {
	stage := prompts.StageReply
	instruction := "Write the tutor's next turn."
	if req.WantQuestion {
		stage = prompts.StageQuestion
		instruction = "Ask the student one question about the topic."
	}

	sections := []prompts.Section{
		{Title: "Topic", Body: req.Context},
		{Title: "Conversation so far", Body: transcript(req.Turns)},
	}

	r, err := call[conversation.Reply](ctx, c, stage, sections, genai.Text(instruction))
	if err != nil {
		return conversation.Reply{}, err
	}

	if req.WantQuestion {
		r.IsQuestion = true
	}
	if strings.TrimSpace(r.Speak) == "" {
		r.Speak = r.Text
	}
	return r, nil
}

// Evaluate judges the student's answer to the most recent question.
func (c *Client) Evaluate(ctx context.Context, req conversation.EvaluateRequest) (conversation.Evaluation, error) {
	sections := []prompts.Section{
		{Title: "Topic", Body: req.Context},
		{Title: "Conversation so far", Body: transcript(req.Turns)},
		{Title: "Student answer", Body: req.Answer},
	}

	r, err := call[conversation.Evaluation](ctx, c, prompts.StageEvaluate, sections,
		genai.Text("Evaluate the student's answer to your last question."))
	if err != nil {
		return conversation.Evaluation{}, err
	}

	if strings.TrimSpace(r.Speak) == "" {
		r.Speak = r.Text
	}
	return r, nil
}

// Review writes the fuller final feedback for a completed whiteboard session.
func (c *Client) Review(ctx context.Context, done feedback.Completion) (string, error) {
	outcome := "The student finished without a correct verdict."
	if done.Solved {
		outcome = "The student solved the problem."
	}

	sections := []prompts.Section{
		{Title: "Problem", Body: done.Problem},
		{Title: "Outcome", Body: outcome},
		{Title: "Checks with mistakes", Body: strconv.Itoa(done.Attempts)},
		{Title: "Last feedback given", Body: done.LastFeedback},
	}

	parts := []genai.Part{genai.Text("Review the finished work.")}
	if !done.Snapshot.Empty() {
		parts = append(parts, genai.Blob{MIMEType: done.Snapshot.MIME, Data: done.Snapshot.Data})
	}

	r, err := call[reviewResult](ctx, c, prompts.StageReview, sections, parts...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(r.Review), nil
}

func transcript(turns []conversation.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		speaker := "Student"
		if t.Role == conversation.RoleAssistant {
			speaker = "Tutor"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
