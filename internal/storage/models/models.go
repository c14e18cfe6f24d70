package models

import "time"

// Passage is one chunk of one rule together with its embedding.
type Passage struct {
	ID             string
	RuleID         string
	Section        string
	Title          string
	Text           string
	EffectiveDate  string
	SourceURL      string
	ContentHash    string
	Embedding      []float32
	EmbeddingModel string
	LastRefreshed  time.Time
}

// Rule is a rule as delivered by an ingestion source, before chunking.
type Rule struct {
	RuleID        string
	Section       string
	Title         string
	Content       string
	EffectiveDate string
	SourceURL     string
}

type TeeDetail struct {
	Yardage      int     `json:"yardage"`
	Par          int     `json:"par"`
	CourseRating float64 `json:"course_rating"`
	SlopeRating  int     `json:"slope_rating"`
	Color        string  `json:"color"`
}

type Course struct {
	ID          int64
	Name        string
	City        string
	State       string
	ZipCode     string
	Country     string
	SlopeMin    int
	SlopeMax    int
	RatingMin   float64
	RatingMax   float64
	Tees        map[string]TeeDetail
	Phone       string
	Website     string
	LastUpdated time.Time
}

type CourseFilter struct {
	Name      string
	City      string
	State     string
	ZipCode   string
	MinSlope  int
	MaxSlope  int
	MinRating float64
	MaxRating float64
	Limit     int
}

type QueryRecord struct {
	ID           string
	Question     string
	QueryType    string
	PassageIDs   []string
	Answer       string
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	LatencyMS    int64
	Feedback     int
	CreatedAt    time.Time
}

type MetricRecord struct {
	ID               int64
	QueryID          string
	ContextRelevancy float64
	ContextPrecision float64
	AnswerRelevancy  float64
	Faithfulness     float64
	CosineSimilarity float64
	CreatedAt        time.Time
}

const (
	DataTypeRules   = "rules"
	DataTypeCourses = "courses"
)

const (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

type FreshnessRecord struct {
	DataType       string
	LastAttempt    time.Time
	LastSuccess    time.Time
	NextScheduled  time.Time
	Status         string
	RecordsUpdated int
	ErrorMessage   string
}

type APIUsage struct {
	ID           int64
	APIName      string
	Operation    string
	TokensInput  int
	TokensOutput int
	CostUSD      float64
	CreatedAt    time.Time
}

type QueryStats struct {
	TotalQueries    int
	AvgLatencyMS    float64
	TotalCostUSD    float64
	PositiveCount   int
	NegativeCount   int
	QueriesByType   map[string]int
	AvgTotalTokens  float64
	TotalTokensUsed int
}

type MetricAverages struct {
	Count            int
	ContextRelevancy float64
	ContextPrecision float64
	AnswerRelevancy  float64
	Faithfulness     float64
	CosineSimilarity float64
}

type APICost struct {
	APIName      string
	Calls        int
	TokensInput  int
	TokensOutput int
	CostUSD      float64
}
