package sessions

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/bimi-admin/internal/utils"
)

// RoleType is the dashboard role carried on the logged in user.
type RoleType string

const (
	RoleAdmin    RoleType = "admin"    // Can upload, review and delete datasets
	RoleUploader RoleType = "uploader" // Can upload datasets
	RoleUser     RoleType = "user"     // Read-only access to the dataset list
)

// ParseRole normalises a role string. Unknown or empty roles are treated as RoleUser.
func ParseRole(s string) RoleType {
	switch RoleType(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUploader:
		return RoleUploader
	default:
		return RoleUser
	}
}

// CanUpload reports whether the role may open the upload screen.
func (r RoleType) CanUpload() bool {
	return r == RoleAdmin || r == RoleUploader
}

// CanReview reports whether the role may approve or reject uploads.
func (r RoleType) CanReview() bool {
	return r == RoleAdmin
}

// User is the identity returned by the login endpoint. Known fields are
// lifted into the struct; everything else the backend sends is kept in
// Extra so it round-trips through the session file untouched.
type User struct {
	ID    string
	Email string
	Name  string
	Role  RoleType
	Extra map[string]any
}

var knownUserFields = []string{"id", "user_id", "email", "name", "full_name", "user_role", "role"}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// user_role wins over role, matching the backend's login payload
	*u = User{
		ID:    firstString(raw, "id", "user_id"),
		Email: firstString(raw, "email"),
		Name:  firstString(raw, "name", "full_name"),
		Role:  ParseRole(firstString(raw, "user_role", "role")),
		Extra: make(map[string]any),
	}
	for k, v := range raw {
		if !isKnownUserField(k) {
			u.Extra[k] = v
		}
	}
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+4)
	for k, v := range u.Extra {
		out[k] = v
	}
	if u.ID != "" {
		out["id"] = u.ID
	}
	if u.Email != "" {
		out["email"] = u.Email
	}
	if u.Name != "" {
		out["name"] = u.Name
	}
	out["user_role"] = string(u.EffectiveRole())
	return json.Marshal(out)
}

// EffectiveRole returns the user's role, RoleUser when unset.
func (u *User) EffectiveRole() RoleType {
	if u == nil || u.Role == "" {
		return RoleUser
	}
	return u.Role
}

// DisplayName prefers the name, then the email, then the role label.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return string(u.EffectiveRole())
	}
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := utils.ToString(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func isKnownUserField(k string) bool {
	for _, f := range knownUserFields {
		if f == k {
			return true
		}
	}
	return false
}

// Session is the client's view of the authenticated user and current credentials.
// A Session with an empty AccessToken is logged out.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Active reports whether authenticated calls may be made with this session.
func (s Session) Active() bool {
	return s.AccessToken != ""
}

// Role is the effective role of the session's user.
func (s Session) Role() RoleType {
	return s.User.EffectiveRole()
}

// TokenUpdate is a partial update applied after a refresh. Nil or empty
// fields leave the stored value untouched.
type TokenUpdate struct {
	AccessToken  *string
	RefreshToken *string
}

func (u TokenUpdate) empty() bool {
	return utils.Value(u.AccessToken) == "" && utils.Value(u.RefreshToken) == ""
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func (s Session) clone() Session {
	s.User = cloneUser(s.User)
	return s
}
