package proc

import (
	"fmt"
	"time"
)

const (
	MaxDurationNormal      = 3 * time.Hour
	MaxDurationPrivileged  = 5 * time.Hour
	MaxFileSize            = 250 << 20
	CacheCeilingNormal     = (10 << 30) / 8
	CacheCeilingPrivileged = (15 << 30) / 8
)

// Verdict is the outcome class of a quota check.
type Verdict int

const (
	Accept Verdict = iota
	AcceptNeedsConfirm
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case AcceptNeedsConfirm:
		return "accept (needs confirmation)"
	default:
		return "reject"
	}
}

// Decision carries the verdict, a human readable reason, and the size the
// rules were evaluated against (estimated when the source had none).
type Decision struct {
	Verdict Verdict
	Reason  string
	Size    int64
}

// Err returns a *QuotaError for rejections and nil otherwise.
func (d Decision) Err() error {
	if d.Verdict != Reject {
		return nil
	}
	return &QuotaError{Reason: d.Reason}
}

// Limits holds the quota thresholds.
type Limits struct {
	MaxDurationNormal      time.Duration
	MaxDurationPrivileged  time.Duration
	MaxFileSize            int64
	CacheCeilingNormal     int64
	CacheCeilingPrivileged int64
}

var DefaultLimits = Limits{
	MaxDurationNormal:      MaxDurationNormal,
	MaxDurationPrivileged:  MaxDurationPrivileged,
	MaxFileSize:            MaxFileSize,
	CacheCeilingNormal:     CacheCeilingNormal,
	CacheCeilingPrivileged: CacheCeilingPrivileged,
}

// Evaluate applies DefaultLimits.
func Evaluate(meta Metadata, tier Tier, usage int64, caching bool) Decision {
	return DefaultLimits.Evaluate(meta, tier, usage, caching)
}

// EstimateSize returns the reported size, or bitrate times duration when the
// source reports none.
func EstimateSize(meta Metadata) int64 {
	if meta.Filesize > 0 {
		return meta.Filesize
	}
	return int64(meta.BitrateKbps * 1000 / 8 * meta.Duration.Seconds())
}

// Evaluate checks, in order: the absolute duration cap, the normal-tier
// duration cap, the cache ceiling (caching mode only), and the single-file cap.
func (l Limits) Evaluate(meta Metadata, tier Tier, usage int64, caching bool) Decision {
	if meta.Duration > l.MaxDurationPrivileged {
		return Decision{Verdict: Reject, Reason: fmt.Sprintf("duration exceeds %s limit", formatHours(l.MaxDurationPrivileged))}
	}
	if tier == TierNormal && meta.Duration > l.MaxDurationNormal {
		return Decision{Verdict: Reject, Reason: "duration exceeds normal-tier limit"}
	}

	size := EstimateSize(meta)

	if caching {
		ceiling := l.CacheCeilingNormal
		if tier == TierPrivileged {
			ceiling = l.CacheCeilingPrivileged
		}
		if usage+size > ceiling {
			return Decision{Verdict: Reject, Reason: "cache storage limit reached", Size: size}
		}
	}

	if size > l.MaxFileSize {
		if tier == TierPrivileged {
			return Decision{Verdict: AcceptNeedsConfirm, Reason: "file exceeds 250 MiB", Size: size}
		}
		return Decision{Verdict: Reject, Reason: "file exceeds 250 MiB", Size: size}
	}

	return Decision{Verdict: Accept, Size: size}
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%d hour", int(d.Hours()))
}
