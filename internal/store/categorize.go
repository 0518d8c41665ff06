package store

import "strings"

// jobCategories maps title keywords to a job category. Order matters, first
// match wins. Some keywords carry deliberate spaces (" ai ", "it ") to avoid
// matching inside longer words.
var jobCategories = []struct {
	name     string
	keywords []string
}{
	{"Machine Learning / AI", []string{
		"machine learning", "ml", " ai ", "artificial intelligence",
		"deep learning", "llm", "neural", "nlp", "computer vision",
		"genai", "gen ai", "ai agent", "ai sw", "ai intern",
		"computational",
	}},
	{"Data Science", []string{
		"data science", "data scientist", "data analyst", "business intelligence",
		"analytics", "data engineering", "data intern", "data platform",
		"data fabric", "data management", "failure analysis data", "pricing data",
		"risk analysis",
	}},
	{"Research", []string{
		"research", "scientist", "phd", "r&d", "bell labs",
	}},
	{"DevOps / Infrastructure", []string{
		"devops", "cloud", "sre", "infrastructure", "platform engineer",
		"reliability", "kubernetes", "aws", "azure", "gcp",
		"network systems", "network automation",
	}},
	{"Software Engineering", []string{
		"software", "developer", "swe", "full stack", "fullstack",
		"frontend", "backend", "web", "mobile", "ios", "android",
		"engineer", "engineering", "programmer", "coder", "technology",
		"digital", "automation", "gis", "gaming", "video algorithm",
		"implementation", "product development", "product manager",
		"simulation", "robotics", "rpa", "it ", "systems", "wireless",
		"mes ", "manufacturing execution", "industry 4.0",
		"digitalization", "dimensional", "innovation", "predictive",
		"language models", "algorithms", "6g", "digital twin",
		"platform", "adtech", "d365", "consulting", "euv", "agile",
		"product associate", "commerce",
	}},
}

// nonTechPatterns identifies postings that reach the index but are not
// software roles; they are skipped at save time.
var nonTechPatterns = []string{
	"meteorologist", "weather", "clinical", "nurse", "nursing", "medical", "physician",
	"pharmacist", "environmental permitting", "storm water", "wastewater",
	"grid planning", "renewable energy", "power generation", "nuclear",
	"earth science", "geologist", "chemistry", "biologist", "ecology",
	"marketing", "sales", "accounting", "finance analyst", "hr ", "human resources",
	"legal", "attorney", "paralegal", "recruiter", "recruiting",
	"public affairs", "policy", "security investigator",
}

// CategorizeTitle buckets a job title, returning "Other" when nothing matches.
func CategorizeTitle(title string) string {
	if title == "" {
		return "Other"
	}
	lower := strings.ToLower(title)
	for _, c := range jobCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return "Other"
}

// IsTechTitle reports whether the title looks like a tech role. Empty titles
// are rejected.
func IsTechTitle(title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, p := range nonTechPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}
