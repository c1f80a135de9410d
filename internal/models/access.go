package models

import "time"

// AccessEvent is one resolution of a short URL waiting to be written back.
type AccessEvent struct {
	ID          string
	Slug        string
	AccessCount int64 // count observed when the slug was resolved
	AccessedAt  time.Time
}

// AccessStats reports the access tracker's queue usage.
type AccessStats struct {
	BufferSize  int `json:"buffer_size"`
	BufferUsed  int `json:"buffer_used"`
	WorkerCount int `json:"worker_count"`
}
