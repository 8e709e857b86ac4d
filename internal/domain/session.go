package domain

import "time"

// AdminSession is an ephemeral authenticated admin session.
type AdminSession struct {
	ID              string    `json:"id"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	CreatedAt       time.Time `json:"createdAt"`
}
