package models

// EventTypeCount is the number of events recorded for one event type
type EventTypeCount struct {
	EventType string `json:"event_type" gorm:"column:event_type"`
	Count     int64  `json:"count" gorm:"column:count"`
}

// DailyCount is an event count for one calendar day (YYYY-MM-DD)
type DailyCount struct {
	Date  string `json:"date" gorm:"column:bucket_day"`
	Count int64  `json:"count" gorm:"column:count"`
}

// JobStats combines the recent daily views and per-type totals of a job
type JobStats struct {
	JobID       string           `json:"job_id"`
	DailyViews  []DailyCount     `json:"daily_views"`
	TotalEvents map[string]int64 `json:"total_events"`
}

// MonthlyAmount is a money total for one calendar month (YYYY-MM)
type MonthlyAmount struct {
	Month  string  `json:"month" gorm:"column:bucket_month"`
	Amount float64 `json:"amount" gorm:"column:total_amount"`
}

// FreelancerEarnings is the earnings rollup for one earner
type FreelancerEarnings struct {
	UserID          string          `json:"user_id"`
	TotalEarnings   float64         `json:"total_earnings"`
	MonthlyEarnings []MonthlyAmount `json:"monthly_earnings"`
}

// JobAmount is a money total attributed to one job
type JobAmount struct {
	JobID  string  `json:"job_id" gorm:"column:job_id"`
	Amount float64 `json:"amount" gorm:"column:total_amount"`
}

// ClientSpend is the spend rollup for one payer
type ClientSpend struct {
	UserID       string      `json:"user_id"`
	TotalSpend   float64     `json:"total_spend"`
	JobBreakdown []JobAmount `json:"job_breakdown"`
}

// CostCenterAmount is spend attributed to one cost center
type CostCenterAmount struct {
	CostCenter string  `json:"cost_center" gorm:"column:cost_center"`
	Amount     float64 `json:"amount" gorm:"column:total_amount"`
}

// ClientOverview summarizes a payer's activity
type ClientOverview struct {
	TotalSpend        float64            `json:"totalSpend"`
	ProjectsFunded    int64              `json:"projectsFunded"`
	SpendByCostCenter []CostCenterAmount `json:"spendByCostCenter"`
}

// RetentionPoint is the share of a cohort active at a month offset
type RetentionPoint struct {
	Cohort        string  `json:"cohort"`
	MonthOffset   int     `json:"month_offset"`
	ActiveUsers   int64   `json:"active_users"`
	CohortSize    int64   `json:"cohort_size"`
	RetentionRate float64 `json:"retention_rate"`
}

// ChurnPoint is the share of a month's active users absent the following month
type ChurnPoint struct {
	Month       string  `json:"month"`
	ActiveUsers int64   `json:"active_users"`
	LostUsers   int64   `json:"lost_users"`
	ChurnRate   float64 `json:"churn_rate"`
}

// ServicePerformance is the latency and error profile of one service
type ServicePerformance struct {
	Service       string  `json:"service"`
	AvgLatency    float64 `json:"avg_latency"`
	P95Latency    float64 `json:"p95_latency"`
	TotalRequests int64   `json:"total_requests"`
	ErrorCount    int64   `json:"error_count"`
	ErrorRate     float64 `json:"error_rate"`
}

// FreelancerOverview is the dashboard summary for an earner
type FreelancerOverview struct {
	TotalEarnings   float64 `json:"totalEarnings"`
	JobsCompleted   int64   `json:"jobsCompleted"`
	JSS             int     `json:"jss"`
	ProfileViews    int64   `json:"profileViews"`
	ActiveProposals int     `json:"activeProposals"`
}

// FunnelStep is one stage of the hiring funnel
type FunnelStep struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ConversionRates are the step-to-step percentages of the hiring funnel
type ConversionRates struct {
	ViewToApp       float64 `json:"viewToApp"`
	AppToInterview  float64 `json:"appToInterview"`
	InterviewToHire float64 `json:"interviewToHire"`
}

// Funnel is the hiring funnel for an earner
type Funnel struct {
	Steps           []FunnelStep    `json:"steps"`
	ConversionRates ConversionRates `json:"conversionRates"`
}

// EarningsPrediction is a linear projection of next month's earnings
type EarningsPrediction struct {
	PredictedNextMonth float64 `json:"predictedNextMonth"`
	Trend              string  `json:"trend"`
	Confidence         float64 `json:"confidence"`
	BasedOnMonths      int     `json:"basedOnMonths"`
}
