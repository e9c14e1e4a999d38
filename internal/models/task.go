package models

// QueryTask is one (query, page) search request of an ingestion run.
type QueryTask struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	Country    string `json:"country"`
	DatePosted string `json:"date_posted"`
}
