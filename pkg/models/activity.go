package models

import "time"

// Activity is a feed entry. It is never mutated after creation.
type Activity struct {
	ID     int64     `json:"id" yaml:"id"`
	Actor  string    `json:"actor" yaml:"actor"`
	Action string    `json:"action" yaml:"action"`
	Time   time.Time `json:"time" yaml:"time"`
}
