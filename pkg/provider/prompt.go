package provider

import (
	"encoding/json"
	"fmt"

	"github.com/chaptermark/chaptermark/pkg/transcript"
	"github.com/invopop/jsonschema"
)

// chapterPayload is the chapter shape of the wire contract shared by every
// backend. timestamp_in_minutes is redundant but keeps models honest about
// the seconds value.
type chapterPayload struct {
	TimestampOriginal  float64 `json:"timestamp_original"`
	TimestampInMinutes float64 `json:"timestamp_in_minutes"`
	Title              string  `json:"title"`
}

type analysisEnvelope struct {
	Chapters []chapterPayload `json:"chapters"`
	Notes    []Note           `json:"notes"`
}

const jsonFormatExample = `{
  "chapters": [
    {"timestamp_original": 0.0, "timestamp_in_minutes": 0.0, "title": "Introduction"},
    {"timestamp_original": 120.5, "timestamp_in_minutes": 2.0, "title": "Main Discussion"},
    {"timestamp_original": 300.0, "timestamp_in_minutes": 5.0, "title": "Conclusion"}
  ],
  "notes": [
    {"timestamp_original": 0.0, "timestamp_in_minutes": 0.0, "person_name": "Saeid", "details": "Switch the test workspace branch back to main after the PR merge."}
  ]
}`

// AnalysisPrompt builds the unified chapter-identification prompt used by
// every backend.
func AnalysisPrompt(t *transcript.Transcript) string {
	return fmt.Sprintf(`Analyze the following meeting transcript JSON data and identify logical chapter boundaries.

The transcript is provided as JSON with segments containing start_time, end_time, and text fields.

For each chapter, provide:
1. The timestamp (in seconds) where the chapter begins. Use the exact "start_time" values from the segments.
2. A concise, descriptive title for the chapter.

The chapters should represent major topic changes or sections in the meeting.
Aim for 3-80 chapters depending on the content length and structure.

Additionally, extract any actionable instructions or tasks mentioned in the meeting.
"notes" should be a list of actionable instructions and tasks found in the meeting. If none found, leave this as an empty array.
Be specific for note details, if possible include order/index of the steps mentioned in meeting to guide the person.
Look for:
- Technical steps that need to be done (e.g., "first do this, then do that")
- Action items assigned to people
- Setup instructions or configuration steps
- Implementation tasks or procedures
- Any sequential instructions or workflows

CRITICAL RULES FOR TIMESTAMPS:
- Extract timestamps directly from the transcript segments' "start_time" field without modification or rounding.
- Use the exact timestamp values from the JSON data.
- List all chapters in ascending chronological order (earliest timestamp first).
- Each chapter must have a unique timestamp (no duplicates).
- Violation of these rules will invalidate the entire response.

Return your response in this exact JSON format:
%s

%s

CRITICAL: You MUST return ONLY valid JSON in the exact format specified above. Do not include any explanations, markdown formatting, or additional text. Start your response with { and end with }. Ensure chapters are sorted by timestamp in ascending order.

Transcript JSON Data:
%s
`, jsonFormatExample, schemaInstruction(), transcriptJSON(t))
}

// ReviewPrompt builds the prompt for a review pass: the prior result plus the
// transcript, with instructions to only add missing content.
func ReviewPrompt(prior *Result, t *transcript.Transcript) string {
	return fmt.Sprintf(`Here is the meeting notes and chapters of attached JSON meeting transcription. Please review and add missing parts.

ORIGINAL ANALYSIS RESULT:
%s

Your task is to:
1. Review the original analysis for completeness
2. Check if any important chapters or topic changes were missed
3. Look for additional actionable instructions, tasks, or steps that weren't captured
4. Add any missing chapters that represent significant topic changes
5. Add any missing notes with actionable instructions, technical steps, or tasks

IMPORTANT GUIDELINES:
- Keep all existing chapters and notes that are correct
- Only ADD missing content, don't remove or modify existing good content
- For chapters: Look for topic transitions, new discussion points, or significant shifts in conversation
- For notes: Focus on actionable items, technical steps, setup instructions, tasks assigned to people, or sequential workflows
- Be specific in note details and include step order/index when mentioned in the meeting
- Use exact timestamps from the transcript segments' "start_time" field
- CRITICAL: Ensure all chapters are listed in chronological order by timestamp

CRITICAL RULES FOR TIMESTAMPS:
- Extract timestamps directly from the transcript segments' "start_time" field without modification or rounding
- Use the exact timestamp values from the JSON data
- List all chapters in ascending chronological order (earliest timestamp first)
- Each chapter must have a unique timestamp (no duplicates)
- Violation of these rules will invalidate the entire response

Return your response in this exact JSON format:
%s

%s

CRITICAL: You MUST return ONLY valid JSON in the exact format specified above. Do not include any explanations, markdown formatting, or additional text. Start your response with { and end with }. Ensure chapters are sorted by timestamp in ascending order.

TRANSCRIPT REFERENCE (for finding missing content):
%s
`, resultJSON(prior), jsonFormatExample, schemaInstruction(), transcriptJSON(t))
}

// schemaInstruction embeds a reflected JSON schema of the result contract,
// which measurably improves contract adherence on smaller local models.
func schemaInstruction() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(analysisEnvelope{})

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return "The response must also validate against this JSON schema:\n" + string(schemaBytes)
}

func transcriptJSON(t *transcript.Transcript) string {
	payload := struct {
		Segments []transcript.Segment `json:"segments"`
		Duration float64              `json:"duration"`
	}{t.Segments, t.Duration}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func resultJSON(r *Result) string {
	envelope := analysisEnvelope{
		Chapters: make([]chapterPayload, 0, len(r.Chapters)),
		Notes:    r.Notes,
	}
	if envelope.Notes == nil {
		envelope.Notes = []Note{}
	}
	for _, c := range r.Chapters {
		envelope.Chapters = append(envelope.Chapters, chapterPayload{
			TimestampOriginal:  c.Timestamp,
			TimestampInMinutes: c.Timestamp / 60.0,
			Title:              c.Title,
		})
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
