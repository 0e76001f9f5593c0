package screens

import (
	"strings"

	"github.com/jrsteele09/bimi-admin/sessions"
)

// Screen is a top level view of the dashboard.
type Screen int

const (
	Login Screen = iota
	Manage
	Upload
	Restricted
	NotFound
)

// Paths of the routable screens. Login has its own route outside the dashboard.
const (
	PathLogin      = "/login"
	PathManage     = "/dashboard/manage"
	PathUpload     = "/dashboard/upload"
	PathRestricted = "/restricted"
)

func (s Screen) String() string {
	switch s {
	case Login:
		return "login"
	case Manage:
		return "manage"
	case Upload:
		return "upload"
	case Restricted:
		return "restricted"
	case NotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Title is the heading shown for the screen.
func (s Screen) Title() string {
	switch s {
	case Login:
		return "Sign in"
	case Manage:
		return "Manage Datasets"
	case Upload:
		return "Upload Dataset"
	case Restricted:
		return "Access Restricted"
	default:
		return "Page Not Found"
	}
}

// Path is the canonical route of the screen, empty for NotFound.
func (s Screen) Path() string {
	switch s {
	case Login:
		return PathLogin
	case Manage:
		return PathManage
	case Upload:
		return PathUpload
	case Restricted:
		return PathRestricted
	default:
		return ""
	}
}

// Resolve maps a request path to the screen to show for sess. Without an
// active session every path shows Login.
func Resolve(path string, sess sessions.Session) Screen {
	if !sess.Active() {
		return Login
	}

	switch strings.TrimSuffix(path, "/") {
	case "", "/dashboard", PathManage, PathLogin:
		return Manage
	case PathUpload:
		if !sess.Role().CanUpload() {
			return Restricted
		}
		return Upload
	case PathRestricted:
		return Restricted
	default:
		return NotFound
	}
}

// transitions lists where each screen's own controls can lead.
var transitions = map[Screen][]Screen{
	Login:      {Manage},
	Manage:     {Manage, Upload, Login},
	Upload:     {Upload, Manage, Login},
	Restricted: {Manage, Login},
	NotFound:   {Manage, Login},
}

// Next returns the screen reached by navigating from one screen to another.
// Losing the session always leads to Login, and an upload attempt by a
// role that cannot upload leads to Restricted. Navigation a screen does not
// offer leaves the user where they are.
func Next(from, to Screen, sess sessions.Session) Screen {
	if !sess.Active() {
		return Login
	}
	if !allowed(from, to) {
		return from
	}
	if to == Upload && !sess.Role().CanUpload() {
		return Restricted
	}
	return to
}

func allowed(from, to Screen) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MenuItem is an entry in the dashboard navigation.
type MenuItem struct {
	Screen Screen
	Title  string
	Path   string
	Active bool
}

// Menu lists the navigation entries role may use, marking current.
func Menu(role sessions.RoleType, current Screen) []MenuItem {
	items := []MenuItem{{Screen: Manage}}
	if role.CanUpload() {
		items = append(items, MenuItem{Screen: Upload})
	}
	for i := range items {
		items[i].Title = items[i].Screen.Title()
		items[i].Path = items[i].Screen.Path()
		items[i].Active = items[i].Screen == current
	}
	return items
}

// Landing is where a fresh login lands: admins start on Upload, everyone
// else on Manage.
func Landing(role sessions.RoleType) Screen {
	if role == sessions.RoleAdmin {
		return Upload
	}
	return Manage
}
