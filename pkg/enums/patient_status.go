package enums

import "fmt"

// PatientStatus describes whether a patient record is active in the registry.
type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "Active"
	PatientStatusInactive PatientStatus = "Inactive"
)

var validPatientStatuses = []PatientStatus{
	PatientStatusActive,
	PatientStatusInactive,
}

// IsValid reports whether the value matches the canonical patient status enum.
func (s PatientStatus) IsValid() bool {
	for _, candidate := range validPatientStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePatientStatus converts the raw string to PatientStatus.
func ParsePatientStatus(value string) (PatientStatus, error) {
	for _, candidate := range validPatientStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid patient status %q", value)
}
