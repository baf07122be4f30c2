package domain

import (
	"fmt"
	"time"
)

// AlertKind identifies the type of a user-facing alert.
type AlertKind int

const (
	AlertRecordingStopped AlertKind = iota
	AlertDiskSpaceLow
	AlertDiskSpaceCritical
	AlertExportFailed
	AlertPermissionRevoked
	AlertQualityDegraded
	AlertRecordingRecovered
)

// String returns a human-readable representation of the alert kind.
func (k AlertKind) String() string {
	switch k {
	case AlertRecordingStopped:
		return "RecordingStopped"
	case AlertDiskSpaceLow:
		return "DiskSpaceLow"
	case AlertDiskSpaceCritical:
		return "DiskSpaceCritical"
	case AlertExportFailed:
		return "ExportFailed"
	case AlertPermissionRevoked:
		return "PermissionRevoked"
	case AlertQualityDegraded:
		return "QualityDegraded"
	case AlertRecordingRecovered:
		return "RecordingRecovered"
	default:
		return "Unknown"
	}
}

// Alert is a typed notification handed to the alert collaborator.
type Alert struct {
	Kind AlertKind
	At   time.Time

	// Reason is set for RecordingStopped, ExportFailed and DiskSpaceCritical.
	Reason error

	// AvailableMB is set for DiskSpaceLow and DiskSpaceCritical.
	AvailableMB uint64

	// From and To are set for QualityDegraded.
	From Quality
	To   Quality

	// Recovering reports whether automatic recovery is in progress.
	Recovering bool
}

// Message renders the alert as a single line of user-facing text.
func (a Alert) Message() string {
	var msg string
	switch a.Kind {
	case AlertRecordingStopped:
		msg = fmt.Sprintf("Recording stopped: %v", a.Reason)
	case AlertDiskSpaceLow:
		msg = fmt.Sprintf("Disk space low: %d MB available", a.AvailableMB)
	case AlertDiskSpaceCritical:
		msg = fmt.Sprintf("Disk space critical: %d MB available, recording stopped", a.AvailableMB)
	case AlertExportFailed:
		msg = fmt.Sprintf("Export failed: %v", a.Reason)
	case AlertPermissionRevoked:
		msg = "Screen capture permission was revoked"
	case AlertQualityDegraded:
		msg = fmt.Sprintf("Recording quality reduced from %s to %s", a.From, a.To)
	case AlertRecordingRecovered:
		msg = "Recording recovered"
	default:
		msg = a.Kind.String()
	}
	if a.Recovering {
		msg += " (automatic recovery in progress)"
	}
	return msg
}
