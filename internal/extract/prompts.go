package extract

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/extract_skills.md
var extractSkillsPromptRaw string

// ExtractSkillsTemplate is the parsed prompt template for skill extraction.
// Parsed once at package init; reused on every Extract call.
var ExtractSkillsTemplate = template.Must(template.New("extract_skills").Parse(extractSkillsPromptRaw))
