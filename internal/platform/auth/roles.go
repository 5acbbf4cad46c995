package auth

import "fmt"

// Role is the closed set of actor roles in the system. Authorization logic
// switches exhaustively over these values rather than comparing free-form
// strings.
type Role string

const (
	RolePatient            Role = "patient"
	RoleDoctor             Role = "doctor"
	RoleHospital           Role = "hospital"
	RoleInsuranceProvider  Role = "insurance_provider"
	RoleEmergencyResponder Role = "emergency_responder"
	RoleAdmin              Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleHospital, RoleInsuranceProvider, RoleEmergencyResponder, RoleAdmin:
		return true
	}
	return false
}

// CanScanEmergencyQR reports whether the role may use the emergency scan path.
// Patients and admins cannot.
func (r Role) CanScanEmergencyQR() bool {
	switch r {
	case RoleDoctor, RoleHospital, RoleEmergencyResponder:
		return true
	case RolePatient, RoleInsuranceProvider, RoleAdmin:
		return false
	}
	return false
}

// CanRequestAccess reports whether the role may file access requests against
// a patient's records.
func (r Role) CanRequestAccess() bool {
	switch r {
	case RoleDoctor, RoleHospital, RoleInsuranceProvider, RoleEmergencyResponder:
		return true
	case RolePatient, RoleAdmin:
		return false
	}
	return false
}

// ParseRole validates a role string received from the outside.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
