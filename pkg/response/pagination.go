package response

const (
	// HeaderMetaPrefix prefixes every metadata header on upload.
	HeaderMetaPrefix = "X-Nimbus-Io-Meta-"
	// HeaderVersionID carries the version a retrieval was served from.
	HeaderVersionID = "X-Nimbus-Io-Version-Identifier"
)

// KeyEntry is one key in a flat listing.
type KeyEntry struct {
	Key               string `json:"key"`
	VersionIdentifier string `json:"version_identifier"`
	Timestamp         string `json:"timestamp,omitempty"`
}

// KeyListing is the body of both key and version listings. Exactly one of
// KeyData and Prefixes is present; which one is decided by whether the
// request carried a delimiter.
type KeyListing struct {
	KeyData   *[]KeyEntry `json:"key_data,omitempty"`
	Prefixes  *[]string   `json:"prefixes,omitempty"`
	Truncated bool        `json:"truncated"`
}

// Conjoined describes one multipart upload.
type Conjoined struct {
	ConjoinedIdentifier string `json:"conjoined_identifier"`
	Key                 string `json:"key"`
	CreateTimestamp     string `json:"create_timestamp"`
	AbortTimestamp      string `json:"abort_timestamp,omitempty"`
	CompleteTimestamp   string `json:"complete_timestamp,omitempty"`
	DeleteTimestamp     string `json:"delete_timestamp,omitempty"`
}

// ConjoinedListing is one page of in-progress multipart uploads.
type ConjoinedListing struct {
	ConjoinedList []Conjoined `json:"conjoined_list"`
	Truncated     bool        `json:"truncated"`
}

// Archived is returned by a successful content upload.
type Archived struct {
	VersionIdentifier string `json:"version_identifier"`
	Size              int64  `json:"size"`
}

// Collection is one entry of the account's collection list.
type Collection struct {
	Name         string `json:"name"`
	Versioning   bool   `json:"versioning"`
	CreationTime string `json:"creation_time,omitempty"`
}

// SpaceUsage summarizes what a collection stores.
type SpaceUsage struct {
	Success       bool  `json:"success"`
	KeyCount      int64 `json:"key_count"`
	VersionCount  int64 `json:"version_count"`
	BytesStored   int64 `json:"bytes_stored"`
	UploadsActive int64 `json:"uploads_active"`
}
