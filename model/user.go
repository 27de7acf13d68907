package model

import "time"

// UserType classifies an account by its role on the platform.
type UserType string

const (
	UserTypeFan       UserType = "fan"
	UserTypeArtist    UserType = "artist"
	UserTypeDJ        UserType = "dj"
	UserTypeDancer    UserType = "dancer"
	UserTypeSchool    UserType = "school"
	UserTypeVenue     UserType = "venue"
	UserTypeOrganizer UserType = "organizer"
)

// VerificationStatus is the state of a user's verification request.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// UserProfile is the client-side projection of an identity document.
type UserProfile struct {
	ID           string             `json:"id"`
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"displayName"`
	AvatarURL    string             `json:"avatarUrl,omitempty"`
	UserType     UserType           `json:"userType"`
	Verification VerificationStatus `json:"verification"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Permissions are the capability flags derived from user type and
// verification status. They are computed, never stored.
type Permissions struct {
	CanPublishTracks bool `json:"canPublishTracks"`
	CanPostVideos    bool `json:"canPostVideos"`
	CanCreateEvents  bool `json:"canCreateEvents"`
	CanSellTickets   bool `json:"canSellTickets"`
}

// PermissionsFor derives the capability flags for a profile.
func PermissionsFor(p UserProfile) Permissions {
	verified := p.Verification == VerificationApproved
	perms := Permissions{
		// Anyone can post to the video feed.
		CanPostVideos: true,
	}
	switch p.UserType {
	case UserTypeArtist, UserTypeDJ:
		perms.CanPublishTracks = verified
	case UserTypeOrganizer, UserTypeVenue, UserTypeSchool:
		perms.CanCreateEvents = verified
		perms.CanSellTickets = verified
	}
	return perms
}
