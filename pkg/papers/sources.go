package papers

import (
	"fmt"
	"regexp"
	"strings"
)

// arXiv IDs come in two formats: new-style YYMM.NNNNN (1706.03762) and
// old-style category/YYMMnnn (cs/0211011, math-ph/0506203).
var arxivIDPattern = regexp.MustCompile(`(?i)^(\d{4}\.\d{4,5}|[a-z-]+/\d{7})$`)

// medRxiv and bioRxiv use versioned DOIs under the 10.1101 prefix; they
// differ only in the length of the trailing sequence number.
var (
	medrxivDOIPattern = regexp.MustCompile(`(?i)^10\.1101/\d{4}\.\d{2}\.\d{2}\.\d{8}v\d+$`)
	biorxivDOIPattern = regexp.MustCompile(`(?i)^10\.1101/\d{4}\.\d{2}\.\d{2}\.\d{6}v\d+$`)
)

func parseArxiv(id string) (Ref, error) {
	id = strings.TrimSuffix(id, ".pdf")
	if !arxivIDPattern.MatchString(id) {
		return Ref{}, fmt.Errorf("invalid arxiv paper id format: %s", id)
	}

	ref := Ref{ID: id, Source: SourceArxiv}
	if i := strings.IndexByte(id, '/'); i >= 0 {
		ref.Category = id[:i]
	}
	return ref, nil
}

func parseRxiv(id string, source Source) (Ref, error) {
	id = strings.TrimSuffix(id, ".full.pdf")

	pattern := medrxivDOIPattern
	if source == SourceBiorxiv {
		pattern = biorxivDOIPattern
	}
	if !pattern.MatchString(id) {
		return Ref{}, fmt.Errorf("invalid %s paper id format: %s", source, id)
	}
	return Ref{ID: id, Source: source}, nil
}

// PDFURL returns the upstream URL the paper's PDF is downloaded from.
func (r Ref) PDFURL() string {
	switch r.Source {
	case SourceMedrxiv, SourceBiorxiv:
		return fmt.Sprintf("%s/content/%s.full.pdf", sourceConfigs[r.Source].BaseURL, r.ID)
	default:
		return fmt.Sprintf("https://arxiv.org/pdf/%s", r.ID)
	}
}

// AbstractURL returns the paper's landing page.
func (r Ref) AbstractURL() string {
	switch r.Source {
	case SourceMedrxiv, SourceBiorxiv:
		return fmt.Sprintf("%s/content/%s", sourceConfigs[r.Source].BaseURL, r.ID)
	default:
		return fmt.Sprintf("https://arxiv.org/abs/%s", r.ID)
	}
}

var arxivCategoryContexts = map[string]string{
	"cs":       "You are a Computer Science professor helping a student understand this research paper. Focus on algorithms, computational methods, software engineering principles, and theoretical computer science concepts.",
	"math":     "You are a Mathematics professor helping a student understand this research paper. Focus on mathematical proofs, theorems, equations, and mathematical reasoning.",
	"physics":  "You are a Physics professor helping a student understand this research paper. Focus on physical principles, experimental methods, and theoretical concepts.",
	"astro-ph": "You are an Astrophysics professor helping a student understand this research paper. Focus on astronomical observations, cosmological models, stellar physics, and observational data.",
	"q-bio":    "You are a Quantitative Biology professor helping a student understand this research paper. Focus on biological modeling, computational biology, bioinformatics, and quantitative analysis of biological systems.",
	"stat":     "You are a Statistics professor helping a student understand this research paper. Focus on statistical methods, data analysis, probability theory, and statistical inference.",
}

// AIContext returns the subject-aware prompt preamble for the paper.
func (r Ref) AIContext() string {
	switch r.Source {
	case SourceMedrxiv:
		return "You are a medical research expert helping users understand and analyze health sciences research papers. Focus on clinical findings, methodology, study populations, statistical analysis, and clinical implications. Explain medical terminology clearly and highlight key takeaways for healthcare practitioners and researchers."
	case SourceBiorxiv:
		return "You are a biological sciences expert helping users understand and analyze life sciences research papers. Focus on experimental design, biological mechanisms, data interpretation, and the significance of the findings for the field."
	}

	if r.Category == "" {
		return "You are a research expert helping users understand this arXiv paper. Focus on explaining concepts clearly, highlighting key contributions, and providing context for the research."
	}
	if ctx, ok := arxivCategoryContexts[r.Category]; ok {
		return ctx
	}
	return fmt.Sprintf("You are a %s expert helping users understand this research paper. Draw upon your expertise in this field to explain concepts clearly and accurately.", r.Category)
}
