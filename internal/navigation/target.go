// Package navigation describes screen transitions as data. The session
// coordinator only requests transitions; a Navigator carries them out.
package navigation

import "fmt"

// Target is a destination screen. The set of implementations is closed.
type Target interface {
	route() string
	fmt.Stringer
}

// Login is the credential entry screen.
type Login struct{}

// AppTabs is the authenticated area with a selected tab.
type AppTabs struct {
	Tab Tab
}

// Profile shows a user's profile.
type Profile struct {
	UserID string
}

// Photo is the camera screen.
type Photo struct{}

func (Login) route() string   { return "Login" }
func (AppTabs) route() string { return "AppTabs" }
func (Profile) route() string { return "Profile" }
func (Photo) route() string   { return "Photo" }

func (Login) String() string { return "Login" }
func (Photo) String() string { return "Photo" }

func (t AppTabs) String() string {
	if t.Tab == nil {
		return "AppTabs/" + HomeTab{}.String()
	}
	return "AppTabs/" + t.Tab.String()
}

func (p Profile) String() string { return "Profile(" + p.UserID + ")" }

// Tab is a tab nested inside AppTabs. The set of implementations is closed.
type Tab interface {
	tab()
	fmt.Stringer
}

// HomeTab is the start tab.
type HomeTab struct{}

// SettingsTab opens settings at a section.
type SettingsTab struct {
	Section Section
}

func (HomeTab) tab()     {}
func (SettingsTab) tab() {}

func (HomeTab) String() string { return "Home" }

func (s SettingsTab) String() string {
	return "Settings#" + string(s.Section.orDefault())
}

// Section is a settings section.
type Section string

const (
	SectionGeneral       Section = "general"
	SectionNotifications Section = "notifications"
	SectionPrivacy       Section = "privacy"
)

func (s Section) orDefault() Section {
	if s == "" {
		return SectionGeneral
	}
	return s
}

// Title is the heading shown for the section. Unknown sections fall back to
// the generic settings title.
func (s Section) Title() string {
	switch s.orDefault() {
	case SectionGeneral:
		return "General settings"
	case SectionNotifications:
		return "Notifications"
	case SectionPrivacy:
		return "Privacy"
	default:
		return "Settings"
	}
}

// Home is the default authenticated destination.
func Home() AppTabs {
	return AppTabs{Tab: HomeTab{}}
}

// Settings targets the settings tab at section.
func Settings(section Section) AppTabs {
	return AppTabs{Tab: SettingsTab{Section: section}}
}

// Mode is how a request affects the navigation stack.
type Mode int

const (
	// Replace swaps the current screen for the target.
	Replace Mode = iota
	// Push puts the target on top of the current screen.
	Push
)

func (m Mode) String() string {
	if m == Push {
		return "push"
	}
	return "replace"
}

// Request is one navigation signal.
type Request struct {
	Mode   Mode
	Target Target
	// Guest marks entry to the authenticated area without an identity.
	Guest bool
}

func (r Request) String() string {
	s := r.Mode.String() + " " + r.Target.String()
	if r.Guest {
		s += " (guest)"
	}
	return s
}
