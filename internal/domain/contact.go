// Package domain contains the core types shared across the responder pipeline.
package domain

// ContactCategory classifies a known caller.
type ContactCategory string

// Contact categories.
const (
	ContactExistingCustomer ContactCategory = "existing_customer"
	ContactNewProspect      ContactCategory = "new_prospect"
	ContactSupplier         ContactCategory = "supplier"
	ContactEmergency        ContactCategory = "emergency"
	ContactPersonal         ContactCategory = "personal"
	ContactBlacklisted      ContactCategory = "blacklisted"
)

// ContactPriority ranks how important a contact is to the business.
type ContactPriority string

// Contact priorities.
const (
	ContactPriorityLow    ContactPriority = "low"
	ContactPriorityMedium ContactPriority = "medium"
	ContactPriorityHigh   ContactPriority = "high"
	ContactPriorityVIP    ContactPriority = "vip"
)

// Contact holds the metadata known about a caller.
type Contact struct {
	Name              string
	Category          ContactCategory
	Priority          ContactPriority
	PreferredPlatform Platform
}
