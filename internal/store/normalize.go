package store

import (
	"strings"

	"stackscout/internal/model"
)

// skillAliases folds common variants to one canonical name. Lookup is by
// lowercased input. Single-letter entries (C, R) are matched before the
// minimum-length check so they survive it.
var skillAliases = map[string]string{
	// Languages
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"python":     "Python",
	"java":       "Java",
	"c#":         "C#",
	"c":          "C/C++",
	"c++":        "C/C++",
	"c/c++":      "C/C++",
	"golang":     "Go",
	"go":         "Go",
	"r":          "R",
	// Frameworks and libraries
	"nodejs":       "Node.js",
	"node.js":      "Node.js",
	"node":         "Node.js",
	"react.js":     "React",
	"reactjs":      "React",
	"vue.js":       "Vue",
	"vuejs":        "Vue",
	"angular.js":   "Angular",
	"angularjs":    "Angular",
	"pytorch":      "PyTorch",
	"tensorflow":   "TensorFlow",
	"scikit-learn": "scikit-learn",
	"numpy":        "NumPy",
	"pandas":       "pandas",
	// Databases
	"postgresql": "PostgreSQL",
	"postgres":   "PostgreSQL",
	"mongodb":    "MongoDB",
	"mysql":      "MySQL",
	// Cloud
	"amazon web services":   "AWS",
	"aws":                   "AWS",
	"google cloud platform": "GCP",
	"google cloud":          "GCP",
	"gcp":                   "GCP",
	"microsoft azure":       "Azure",
	"azure":                 "Azure",
	// Tools
	"git":                    "Git",
	"github":                 "GitHub",
	"gitlab":                 "GitLab",
	"docker":                 "Docker",
	"kubernetes":             "Kubernetes",
	"k8s":                    "Kubernetes",
	"jira":                   "Jira",
	"ci/cd":                  "CI/CD",
	"continuous integration": "CI/CD",
	// Systems
	"linux":      "Linux",
	"unix":       "Unix",
	"bash":       "Bash",
	"powershell": "PowerShell",
	// Methodologies
	"scrum": "Scrum",
	"agile": "Agile",
	// Data science
	"matlab": "MATLAB",
}

// skipTerms flags vague, non-technical strings the extractor sometimes emits
// despite the prompt.
var skipTerms = []string{
	"problem solving", "communication", "teamwork", "fast-paced",
	"self-starter", "detail-oriented", "passionate", "motivated",
	"excellent", "strong", "good", "ability to", "experience with",
}

// keepCompound lists multi-word terms that stay a single skill.
var keepCompound = []string{
	"data structures", "algorithms", "data structures & algorithms",
	"data structures and algorithms", "object oriented",
	"machine learning", "deep learning", "computer vision",
	"natural language processing", "distributed systems",
}

// NormalizeSkill canonicalizes one raw skill string. It returns zero names
// (vague or junk input), one, or several when a short combination like
// "React/Node" is split apart.
func NormalizeSkill(name string) []string {
	skill := strings.TrimSpace(name)
	if skill == "" {
		return nil
	}

	lower := strings.ToLower(skill)
	if canonical, ok := skillAliases[lower]; ok {
		return []string{canonical}
	}
	if len(skill) < 2 {
		return nil
	}
	for _, term := range skipTerms {
		if strings.Contains(lower, term) {
			return nil
		}
	}
	for _, term := range keepCompound {
		if strings.Contains(lower, term) {
			return []string{skill}
		}
	}

	// Split short combinations. Known compounds like CI/CD never reach this
	// point, the alias table catches them first.
	if strings.Contains(skill, "/") && len(skill) < 20 {
		var out []string
		for _, part := range strings.Split(skill, "/") {
			part = strings.TrimSpace(part)
			if len(part) < 2 {
				continue
			}
			if canonical, ok := skillAliases[strings.ToLower(part)]; ok {
				part = canonical
			}
			out = append(out, part)
		}
		if len(out) == 0 {
			return []string{skill}
		}
		return out
	}

	return []string{skill}
}

// flattenSkills normalizes every extracted string into (name, category) rows,
// deduplicated within the posting. Category names follow the extractor's
// bucket names.
func flattenSkills(set model.SkillSet) []model.Skill {
	buckets := []struct {
		category string
		names    []string
	}{
		{"languages", set.Languages},
		{"frameworks", set.Frameworks},
		{"databases", set.Databases},
		{"tools", set.Tools},
		{"concepts", set.Concepts},
	}

	type key struct{ name, category string }
	seen := make(map[key]struct{})
	var out []model.Skill
	for _, b := range buckets {
		for _, raw := range b.names {
			for _, name := range NormalizeSkill(raw) {
				k := key{name, b.category}
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				out = append(out, model.Skill{Name: name, Category: b.category})
			}
		}
	}
	return out
}
