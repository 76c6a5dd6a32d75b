package model

import (
	"time"
)

type RequestStatus string

const (
	RequestStatusPending RequestStatus = "pending"
	RequestStatusSynced  RequestStatus = "synced"
	RequestStatusFailed  RequestStatus = "failed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusSynced, RequestStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from s to next.
// failed -> pending is only reachable through an explicit retry.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusSynced || next == RequestStatusFailed
	case RequestStatusFailed:
		return next == RequestStatusPending
	}
	return false
}

// EmergencyRequestDraft holds the caller supplied fields of a request.
// The queue treats them as opaque; validation happens at the edge.
type EmergencyRequestDraft struct {
	BloodType    string `json:"blood_type" binding:"required,bloodtype"`
	Location     string `json:"location" binding:"required"`
	Urgency      string `json:"urgency" binding:"required,oneof=Critical High Medium Low"`
	PatientName  string `json:"patient_name" binding:"required"`
	Hospital     string `json:"hospital" binding:"required"`
	ContactPhone string `json:"contact_phone" binding:"required,phone"`
	UnitsNeeded  int    `json:"units_needed" binding:"required,min=1,max=50"`
	Description  string `json:"description"`
}

type EmergencyRequest struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Status    RequestStatus `json:"status"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"last_error,omitempty"`
	SyncedAt  *time.Time    `json:"synced_at,omitempty"`

	EmergencyRequestDraft
}

// Draft returns the fields that are sent to the remote service.
func (r *EmergencyRequest) Draft() EmergencyRequestDraft {
	return r.EmergencyRequestDraft
}
