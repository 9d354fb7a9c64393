// Package domain defines shared domain types and their persistence.
package domain

import "time"

// GeoPoint is a geographic coordinate as reported by Telegram.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// LocationRecord is one shared position of a bench. Records are append-only;
// only the one with the newest date is ever read back.
type LocationRecord struct {
	ChatID   int64     `bson:"chat_id" json:"chat_id"`
	Date     time.Time `bson:"date" json:"date"`
	UserID   string    `bson:"user_id" json:"user_id"`
	Location GeoPoint  `bson:"location" json:"location"`
}
