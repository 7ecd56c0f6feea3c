package staff

import "time"

// Roles a staff member can hold. They match the Keycloak realm roles.
const (
	RoleOrthodontist = "ORTHODONTIST"
	RoleAssistant    = "ASSISTANT"
	RoleReceptionist = "RECEPTIONIST"
	RoleAdmin        = "ADMIN"
)

var validRoles = map[string]bool{
	RoleOrthodontist: true,
	RoleAssistant:    true,
	RoleReceptionist: true,
	RoleAdmin:        true,
}

// Member is a person working at the practice.
type Member struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type CreateStaffRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type UpdateStaffRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ListFilter struct {
	Role   string
	Active *bool
}
