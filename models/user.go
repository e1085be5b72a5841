package models

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUdyamMitra Role = "udyamMitra"
)

// Roles is the fixed set a role claim may take.
var Roles = []Role{RoleUdyamMitra, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// RoleOrDefault maps an absent claim to the non-privileged role.
func RoleOrDefault(claim string) Role {
	if claim == "" {
		return RoleUdyamMitra
	}
	return Role(claim)
}

// ProfileNotAvailable is reported when an identity has no profile document.
const ProfileNotAvailable = "N/A"

type UserProfile struct {
	UID          string   `json:"uid" bson:"_id"`
	Email        string   `json:"email" bson:"email"`
	DisplayName  string   `json:"displayName" bson:"display_name"`
	Role         Role     `json:"role" bson:"role"`
	UdyamMitraID string   `json:"udyamMitraId" bson:"udyam_mitra_id"`
	Metadata     Metadata `json:"metadata" bson:"metadata"`
}

// IdentityRecord is a registered identity as the identity provider reports it.
type IdentityRecord struct {
	UID         string
	Email       string
	DisplayName string
	Role        Role
}

type UserSummary struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	Role         Role   `json:"role"`
	UdyamMitraID string `json:"udyamMitraId"`
}
