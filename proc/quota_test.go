package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(9_600_000), EstimateSize(Metadata{BitrateKbps: 128, Duration: 10 * time.Minute}))
	assert.Equal(t, int64(42), EstimateSize(Metadata{Filesize: 42, BitrateKbps: 128, Duration: time.Hour}))
	assert.Equal(t, int64(0), EstimateSize(Metadata{Duration: time.Hour}))
}

func TestEvaluateDuration(t *testing.T) {
	tests := []struct {
		name    string
		dur     time.Duration
		tier    Tier
		verdict Verdict
		reason  string
	}{
		{"short normal", 3 * time.Minute, TierNormal, Accept, ""},
		{"normal at cap", 3 * time.Hour, TierNormal, Accept, ""},
		{"normal over cap", 4 * time.Hour, TierNormal, Reject, "duration exceeds normal-tier limit"},
		{"privileged 4h", 4 * time.Hour, TierPrivileged, Accept, ""},
		{"privileged over absolute cap", 5*time.Hour + time.Second, TierPrivileged, Reject, "duration exceeds 5 hour limit"},
		{"normal over absolute cap", 6 * time.Hour, TierNormal, Reject, "duration exceeds 5 hour limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(Metadata{Duration: tt.dur, Filesize: 1 << 20}, tt.tier, 0, false)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestEvaluateFileSize(t *testing.T) {
	big := Metadata{Duration: time.Hour, Filesize: 300 << 20}

	d := Evaluate(big, TierNormal, 0, false)
	assert.Equal(t, Reject, d.Verdict)
	var qe *QuotaError
	require.ErrorAs(t, d.Err(), &qe)
	assert.Equal(t, "file exceeds 250 MiB", qe.Reason)

	d = Evaluate(big, TierPrivileged, 0, false)
	assert.Equal(t, AcceptNeedsConfirm, d.Verdict)
	assert.Equal(t, int64(300<<20), d.Size)
	assert.NoError(t, d.Err())

	d = Evaluate(Metadata{Duration: time.Hour, Filesize: MaxFileSize}, TierNormal, 0, false)
	assert.Equal(t, Accept, d.Verdict)
}

func TestEvaluateCacheCeiling(t *testing.T) {
	meta := Metadata{Duration: time.Hour, Filesize: 100 << 20}

	d := Evaluate(meta, TierNormal, CacheCeilingNormal-(50<<20), true)
	assert.Equal(t, Reject, d.Verdict)
	assert.Equal(t, "cache storage limit reached", d.Reason)

	d = Evaluate(meta, TierPrivileged, CacheCeilingNormal-(50<<20), true)
	assert.Equal(t, Accept, d.Verdict)

	// The ceiling only applies while caching.
	d = Evaluate(meta, TierNormal, CacheCeilingPrivileged, false)
	assert.Equal(t, Accept, d.Verdict)
}

func TestEvaluateCustomLimits(t *testing.T) {
	l := DefaultLimits
	l.MaxDurationNormal = time.Minute

	d := l.Evaluate(Metadata{Duration: 2 * time.Minute}, TierNormal, 0, false)
	assert.Equal(t, Reject, d.Verdict)
}
