package model

import "time"

// BusinessAccount is a tenant: the unit of billing and data isolation.
// Created once by its owner; all team members, websites, and conversations
// hang off it.
type BusinessAccount struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
