package enums

import "fmt"

// PrescriptionStatus describes the lifecycle state of a prescription.
type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "Active"
	PrescriptionStatusCompleted PrescriptionStatus = "Completed"
)

var validPrescriptionStatuses = []PrescriptionStatus{
	PrescriptionStatusActive,
	PrescriptionStatusCompleted,
}

// IsValid reports whether the value matches the canonical prescription status enum.
func (s PrescriptionStatus) IsValid() bool {
	for _, candidate := range validPrescriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePrescriptionStatus converts the raw string to PrescriptionStatus.
func ParsePrescriptionStatus(value string) (PrescriptionStatus, error) {
	for _, candidate := range validPrescriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid prescription status %q", value)
}
