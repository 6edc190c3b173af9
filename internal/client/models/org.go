package models

import "time"

// DefaultOrgName is used when nothing better is known about the owner.
const DefaultOrgName = "My Organization"

// Organization is the business profile of a signed-in identity. At most one
// exists locally.
type Organization struct {
	ID        string
	OwnerUID  string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
