// Package medialib is the client side of the media library. It resolves
// short-lived access URLs, caches catalog listings, assembles the folder tree
// across the authoritative store and linked cloud providers, and drives the
// upload, bulk delete and cloud sync protocols against a Backend.
package medialib

import (
	"strings"
	"time"
)

type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaOther MediaType = "other"
)

// MediaTypeFromMIME derives the display type from a MIME type such as
// "image/png". Parameters after ';' are ignored.
func MediaTypeFromMIME(mime string) MediaType {
	mime = strings.ToLower(strings.TrimSpace(mime))

	switch {
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	default:
		return MediaOther
	}
}

type LocationKind string

const (
	LocationAuthoritative LocationKind = "authoritative"
	LocationCloud         LocationKind = "cloud"
)

// Provider identifies a third-party cloud storage provider a user can link.
type Provider string

const (
	ProviderGoogleDrive Provider = "google_drive"
	ProviderR2          Provider = "r2"
)

// Providers is the fixed set of providers a connection can be made to.
var Providers = []Provider{ProviderGoogleDrive, ProviderR2}

func (p Provider) Valid() bool {
	for _, v := range Providers {
		if v == p {
			return true
		}
	}

	return false
}

// Location tags where a file lives. Provider is only set for cloud files.
type Location struct {
	Kind     LocationKind `json:"kind"`
	Provider Provider     `json:"provider,omitempty"`
}

func Authoritative() Location {
	return Location{Kind: LocationAuthoritative}
}

func Cloud(p Provider) Location {
	return Location{Kind: LocationCloud, Provider: p}
}

// MediaFile is a file in either the authoritative store or a cloud mirror.
// Authoritative files only ever carry an ObjectKey, never a durable URL.
// Cloud files carry the provider-native id and may carry a direct URL.
type MediaFile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       MediaType  `json:"type"`
	MIME       string     `json:"mime"`
	Size       int64      `json:"size"`
	Location   Location   `json:"location"`
	ObjectKey  string     `json:"object_key,omitempty"`
	ProviderID string     `json:"provider_id,omitempty"`
	URL        string     `json:"url,omitempty"`
	FolderID   *string    `json:"folder_id,omitempty"`
	ProjectID  string     `json:"project_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MediaFolder is a node of the authoritative folder tree. Path holds the
// names of the ancestors, so a root folder has an empty path.
type MediaFolder struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Path      []string       `json:"path"`
	ParentID  *string        `json:"parent_id,omitempty"`
	Children  []*MediaFolder `json:"children"`
	FileCount int            `json:"file_count"`
}

type CloudConnection struct {
	Provider  Provider `json:"provider"`
	Connected bool     `json:"connected"`
}

// Quota describes the authoritative store usage, in bytes.
type Quota struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

func (q Quota) Free() int64 {
	if q.Used >= q.Total {
		return 0
	}

	return q.Total - q.Used
}

// WellKnownFolders are the top-level categories every connected cloud
// provider is organized into. Synced files land in the one matching their type.
var WellKnownFolders = []string{"Images", "Videos", "Audio", "Other"}

// WellKnownFolder returns the cloud folder a file of type t is synced into.
func WellKnownFolder(t MediaType) string {
	switch t {
	case MediaImage:
		return "Images"
	case MediaVideo:
		return "Videos"
	case MediaAudio:
		return "Audio"
	default:
		return "Other"
	}
}

func anyConnected(conns []CloudConnection) bool {
	for _, c := range conns {
		if c.Connected {
			return true
		}
	}

	return false
}
