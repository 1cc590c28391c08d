package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User roles. A landlord lists properties, a tenant books them,
// a provider answers service requests.
const (
	RoleTenant   = "tenant"
	RoleLandlord = "landlord"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	PhoneNumber         string         `json:"phoneNumber" gorm:"index"`
	Password            string         `json:"-"`
	SocialLogin         bool           `json:"socialLogin"`
	SocialProvider      string         `json:"socialProvider"`
	AvatarURL           string         `json:"avatarURL"`
	Bio                 string         `json:"bio"`
	Properties          []Property     `json:"properties,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	IsVerified          *bool          `json:"isVerified"`
	Role                string         `json:"role" gorm:"type:varchar(20);default:tenant;index"` // tenant, landlord, provider, admin
}

// Custom JSON marshaling to expose PushTokens as an array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
