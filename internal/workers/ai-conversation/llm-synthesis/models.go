package llmsynthesis

// Source labels the data an explanation is about.
type Source string

const (
	SourceAnalytics Source = "analytics"
	SourceSEO       Source = "seo"
)

// ExplainRequest is the input of one explanation call.
type ExplainRequest struct {
	Question    string
	Source      Source
	Data        interface{}
	ResultCount int
}

// AggregateRequest carries the two per-agent explanations to merge.
type AggregateRequest struct {
	Question             string
	AnalyticsExplanation string
	SEOExplanation       string
}

var sourceLabels = map[Source]string{
	SourceAnalytics: "Google Analytics 4 report",
	SourceSEO:       "SEO audit spreadsheet",
}

var wordLimits = map[Source]int{
	SourceAnalytics: 200,
	SourceSEO:       250,
}

const aggregateWordLimit = 250
