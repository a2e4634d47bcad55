// Package pipeline defines core types shared across subsystems.
package pipeline

import "time"

// JobStatus represents the lifecycle state of an optimization job.
type JobStatus string

// Job status values persisted in the job store. Terminal states are
// absorbing: once a job is completed or failed it never transitions again.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobParameters captures per-job configuration requested by the client.
type JobParameters struct {
	PageRef    string `json:"page_ref,omitempty"`
	Slug       string `json:"slug"`
	Keyword    string `json:"keyword,omitempty"`
	ProviderID string `json:"provider"`
	Model      string `json:"model"`
	APIKey     string `json:"-"`
	MinWords   int    `json:"min_words"`
	MaxWords   int    `json:"max_words"`
}

// Job is the single mutable record per optimization run. It is written
// only by the orchestrator; pollers read it by ID.
type Job struct {
	ID           string         `json:"id"`
	PageRef      string         `json:"page_ref,omitempty"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	CurrentStep  string         `json:"current_step,omitempty"`
	Result       *ContentBundle `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Parameters   JobParameters  `json:"parameters"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// CandidateStatus tracks a discovered page through the optimization flow.
type CandidateStatus string

// Candidate status values. Recrawls replace every candidate that has not
// reached completed.
const (
	CandidateDiscovered CandidateStatus = "discovered"
	CandidateOptimizing CandidateStatus = "optimizing"
	CandidateCompleted  CandidateStatus = "completed"
	CandidateFailed     CandidateStatus = "failed"
)

// PageCandidate is a page discovered via sitemap resolution, enriched by
// the content fetcher. Immutable once produced for a given crawl.
type PageCandidate struct {
	URL           string          `json:"url"`
	Slug          string          `json:"slug"`
	Title         string          `json:"title,omitempty"`
	WordCount     int             `json:"word_count,omitempty"`
	Categories    []string        `json:"categories,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	FeaturedImage string          `json:"featured_image,omitempty"`
	Score         *int            `json:"score,omitempty"`
	Status        CandidateStatus `json:"status"`
	DiscoveredAt  time.Time       `json:"discovered_at"`
}

// CandidateEnrichment carries page metadata learned while optimizing a
// candidate. Zero-valued fields leave the stored value untouched.
type CandidateEnrichment struct {
	Title     string
	WordCount int
	Score     *int
}

// SectionType enumerates the closed set of structural block variants a
// content bundle may contain. A section's payload shape is determined
// solely by its type.
type SectionType string

// Supported section types.
const (
	SectionTLDR            SectionType = "tldr"
	SectionTakeaways       SectionType = "takeaways"
	SectionHeading         SectionType = "heading"
	SectionParagraph       SectionType = "paragraph"
	SectionQuote           SectionType = "quote"
	SectionCTA             SectionType = "cta"
	SectionSummary         SectionType = "summary"
	SectionFAQ             SectionType = "faq"
	SectionTable           SectionType = "table"
	SectionImageSuggestion SectionType = "image_suggestion"
)

// RequiredSectionTypes lists the block types the generator is instructed
// to produce and the validator penalizes when absent.
func RequiredSectionTypes() []SectionType {
	return []SectionType{
		SectionTLDR,
		SectionTakeaways,
		SectionHeading,
		SectionParagraph,
		SectionQuote,
		SectionCTA,
		SectionSummary,
		SectionFAQ,
	}
}

// Section is one typed block within a ContentBundle.
type Section struct {
	Type    SectionType       `json:"type"`
	Content string            `json:"content,omitempty"`
	Items   []string          `json:"items,omitempty"`
	FAQs    []FAQEntry        `json:"faqs,omitempty"`
	Table   [][]string        `json:"table,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// FAQEntry is a question/answer pair inside a faq section.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ContentBundle is the pipeline's terminal artifact, embedded in
// Job.Result once a job completes.
type ContentBundle struct {
	Title            string    `json:"title"`
	MetaDescription  string    `json:"meta_description,omitempty"`
	Headings         []string  `json:"headings,omitempty"`
	BodySections     []Section `json:"body_sections"`
	QualityScore     int       `json:"quality_score"`
	SEOScore         int       `json:"seo_score"`
	ReadabilityScore int       `json:"readability_score"`
	WordCount        int       `json:"word_count"`
}

// ValidationResult is the itemized structural-compliance report produced
// once per job. It is never persisted beyond final score derivation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
	Score  int      `json:"score"`
}

// Insights carries optional keyword-research guidance from the insight
// tool. A nil *Insights means the sub-step was skipped or timed out.
type Insights struct {
	Keyword         string   `json:"keyword"`
	SearchVolume    int      `json:"search_volume,omitempty"`
	Difficulty      int      `json:"difficulty,omitempty"`
	RelatedTerms    []string `json:"related_terms,omitempty"`
	CommonQuestions []string `json:"common_questions,omitempty"`
}

// PageContent is what the content host returns for a slug.
type PageContent struct {
	HostID  int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// InternalLink is one internal-link candidate offered to the generator.
type InternalLink struct {
	URL   string `json:"url"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// GenerationRequest captures everything needed for one generator call.
type GenerationRequest struct {
	ProviderID   string
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
	Timeout      time.Duration
}

// GenerationResult is the normalized two-field provider response.
type GenerationResult struct {
	Text       string
	TokensUsed int
}

// Event is published when a job reaches a terminal state.
type Event struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	PageRef      string    `json:"page_ref,omitempty"`
	QualityScore int       `json:"quality_score,omitempty"`
	SEOScore     int       `json:"seo_score,omitempty"`
	BlobURI      string    `json:"blob_uri,omitempty"`
	ErrorText    string    `json:"error_text,omitempty"`
	At           time.Time `json:"at"`
}
