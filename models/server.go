package models

import "time"

// Vendor identifies the chat platform a server lives on.
type Vendor string

const (
	VendorDiscord Vendor = "discord"
)

// Tier is a server's subscription tier.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Status flips instead of deleting servers.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IntegrationKind is a supported source platform.
type IntegrationKind string

const (
	IntegrationInstagram IntegrationKind = "instagram"
	IntegrationTikTok    IntegrationKind = "tiktok"
	IntegrationYouTube   IntegrationKind = "youtube"
)

// AllIntegrations lists every supported platform. New servers get one enabled
// Integration per entry.
var AllIntegrations = []IntegrationKind{
	IntegrationInstagram,
	IntegrationTikTok,
	IntegrationYouTube,
}

// Valid reports whether k is a known integration kind.
func (k IntegrationKind) Valid() bool {
	for _, known := range AllIntegrations {
		if k == known {
			return true
		}
	}
	return false
}

// Integration holds per-server settings for one platform.
type Integration struct {
	ID         int64           `json:"id"`
	UID        string          `json:"uid"`
	Kind       IntegrationKind `json:"kind"`
	Enabled    bool            `json:"enabled"`
	PostFormat string          `json:"post_format,omitempty"`
}

// Server is a tenant: one chat community with its own tier and integration settings.
type Server struct {
	ID             int64                           `json:"id"`
	UID            string                          `json:"uid"`
	VendorUID      string                          `json:"vendor_uid"`
	Vendor         Vendor                          `json:"vendor"`
	Tier           Tier                            `json:"tier"`
	TierValidUntil *time.Time                      `json:"tier_valid_until,omitempty"`
	Status         Status                          `json:"status"`
	Prefix         string                          `json:"prefix"`
	Integrations   map[IntegrationKind]Integration `json:"integrations"`
}

// Integration returns the settings for kind. A kind missing from the map is
// reported as disabled.
func (s *Server) Integration(kind IntegrationKind) Integration {
	if integration, ok := s.Integrations[kind]; ok {
		return integration
	}
	return Integration{Kind: kind}
}

// ServerPost records one delivery of a Post into a Server.
type ServerPost struct {
	ID        int64     `json:"id"`
	ServerID  int64     `json:"server_id"`
	PostID    int64     `json:"post_id"`
	AuthorUID string    `json:"author_uid"`
	URL       string    `json:"url"`
	Created   time.Time `json:"created"`
}

// ServerMember tracks per-member moderation state.
type ServerMember struct {
	ServerID  int64  `json:"server_id"`
	MemberUID string `json:"member_uid"`
	Banned    bool   `json:"banned"`
}
