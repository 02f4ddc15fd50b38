package model

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
	RoleManagement   Role = "management"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProfessional, RoleAdmin, RoleManagement:
		return true
	}
	return false
}

// User is the cached profile snapshot stored next to the tokens.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
}

// Session is the in-memory view of who is logged in.
// AccessToken and User are either both set or both empty.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

func (s Session) Empty() bool {
	return s.AccessToken == "" || s.User == nil
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Message struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}
