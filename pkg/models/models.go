package models

import "time"

// AskRequest is the JSON body of POST /ask.
type AskRequest struct {
	Question    string `json:"question"`
	PageContent string `json:"page_content"`
	Action      string `json:"action,omitempty"` // summarize (default), explain or anything else to answer
}

// AskResponse carries the model's answer, or a user-facing notice when the
// input was unusable.
type AskResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cache_entries"`
}

// Page represents a fetched web page.
type Page struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`      // normalised, HTML already converted
	ContentType string    `json:"content_type"` // HTTP Content-Type header
	FetchedAt   time.Time `json:"fetched_at"`
}
