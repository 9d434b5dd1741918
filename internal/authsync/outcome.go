// Package authsync keeps the local credential file in step with the sync
// service. One Sync call performs one retrieve exchange (plus a store when
// the service asks for the local copy) and reports a typed Outcome.
package authsync

import "github.com/ZebulonRouseFrantzich/cdx/internal/credential"

// Status is the result kind of a sync exchange.
type Status string

const (
	StatusValid           Status = "valid"
	StatusOutdated        Status = "outdated"
	StatusUploadRequired  Status = "upload_required"
	StatusDenied          Status = "denied"
	StatusTransportFailed Status = "transport_failed"
	StatusDisabled        Status = "disabled"
	// StatusSkipped means sync is not configured and optional mode allows it.
	StatusSkipped Status = "skipped"
)

// RemoteVersions is the versions block advertised by the service.
type RemoteVersions struct {
	ClientVersion  string `json:"client_version"`
	WrapperVersion string `json:"wrapper_version"`
	WrapperSHA256  string `json:"wrapper_sha256"`
	WrapperURL     string `json:"wrapper_url"`
}

func (v *RemoteVersions) empty() bool {
	return v == nil || *v == RemoteVersions{}
}

// Outcome is produced once per Sync call.
type Outcome struct {
	Status Status
	// Reason explains Denied, Disabled and TransportFailed outcomes.
	Reason string
	// Document is the credential document after the exchange.
	Document credential.Document
	// NewRefresh is the document's last_refresh after the exchange.
	NewRefresh string
	Versions   *RemoteVersions
	// Deleted reports that the local credential file was removed.
	Deleted bool
	// Err carries the underlying failure, if any.
	Err error
}

// Healthy reports whether the exchange permits starting the target binary.
func (o *Outcome) Healthy() bool {
	switch o.Status {
	case StatusValid, StatusOutdated, StatusUploadRequired, StatusSkipped:
		return true
	}
	return false
}

// Changed reports whether the exchange rewrote the local document.
func (o *Outcome) Changed() bool {
	return o.Status == StatusOutdated || o.Status == StatusUploadRequired
}
