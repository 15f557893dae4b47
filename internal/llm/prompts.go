package llm

import (
	"strings"
)

// SystemPromptClinical is the default system prompt for note generation.
const SystemPromptClinical = `You are a clinical documentation assistant for speech therapy and medical sessions. You write professional, clinically accurate session notes from a transcript of the session audio. You never invent findings that the transcript does not support.`

// noteGuidelines are appended to every summary prompt.
const noteGuidelines = `IMPORTANT GUIDELINES:
- Use professional clinical language and terminology.
- Be concise but thorough, focusing on clinically relevant information.
- Keep objective observations separate from subjective reports.
- Reference specific statements from the transcript that support the assessment.
- Give specific, actionable steps in the plan.
- Leave a section as "Not discussed" when the transcript has nothing for it.
- Follow the template structure exactly.`

// BuildSummaryPrompt renders the user prompt for a summary request.
func BuildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder

	b.WriteString("Generate a clinical session note from the transcript below.\n\n")

	b.WriteString("CLIENT: ")
	b.WriteString(req.Subject)
	b.WriteString("\n")
	if len(req.Disorders) > 0 {
		b.WriteString("CLINICAL FOCUS: ")
		b.WriteString(strings.Join(req.Disorders, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("SESSION TRANSCRIPT:\n")
	if strings.TrimSpace(req.Transcript) == "" {
		b.WriteString("(no speech was captured during this session)\n\n")
	} else {
		b.WriteString(req.Transcript)
		b.WriteString("\n\n")
	}

	t := req.Template
	b.WriteString("NOTE TYPE: ")
	b.WriteString(t.Name)
	b.WriteString("\n\nTEMPLATE STRUCTURE:\n")
	b.WriteString(t.Format)
	b.WriteString("\n\nReplace every [PLACEHOLDER] with content drawn from the transcript.\n")
	if labels := t.Labels(); len(labels) > 0 {
		b.WriteString("The note must include these fields: ")
		b.WriteString(strings.Join(labels, ", "))
		b.WriteString("\n")
	}
	if t.Instructions != "" {
		b.WriteString("\nSECTION INSTRUCTIONS:\n")
		b.WriteString(t.Instructions)
		b.WriteString("\n")
	}
	if t.IncludeCPTCodes {
		b.WriteString("\nSuggest the applicable CPT procedure codes at the end of the note.\n")
	}

	b.WriteString("\n")
	b.WriteString(noteGuidelines)
	return b.String()
}
