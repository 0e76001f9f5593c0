package sessions

// Persisted keys. One value per key, matching what the browser dashboard kept
// in local storage so a profile can be shared between the two.
const (
	KeyAccessToken  = "bimi_access_token"
	KeyRefreshToken = "bimi_refresh_token"
	KeyUser         = "bimi_user"
)

// AllKeys lists every key the store owns.
var AllKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Repo is the durable key-value backend behind a Store.
type Repo interface {
	// Load returns every persisted key. A missing backing record is an empty map, not an error.
	Load() (map[string]string, error)

	// SetMany writes the given keys in one step; readers never see a subset of them.
	SetMany(values map[string]string) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(keys ...string) error
}
