package domain

import "time"

// Bench represents the tracked object of one group chat. The chat id doubles
// as the bench identifier; a chat has at most one bench.
type Bench struct {
	ChatID      int64     `bson:"chat_id" json:"chat_id"`
	DisplayName string    `bson:"display_name" json:"display_name"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
