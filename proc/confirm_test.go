package proc

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmKindTimeouts(t *testing.T) {
	assert.Equal(t, 15*time.Second, ConfirmLargeDownload.Timeout())
	assert.Equal(t, 15*time.Second, ConfirmReboot.Timeout())
	assert.Equal(t, 10*time.Second, ConfirmDeleteFiles.Timeout())
}

func TestConfirmationsAnswer(t *testing.T) {
	c := NewConfirmations()
	owner := snowflake.ID(1)
	other := snowflake.ID(2)

	pc := c.Request(ConfirmReboot, owner, 0, "payload")
	assert.NotEmpty(t, pc.ID)
	assert.Equal(t, 1, c.Len())

	_, err := c.Confirm(pc.ID, other)
	assert.ErrorIs(t, err, ErrNotRequester)
	assert.Equal(t, 1, c.Len())

	got, err := c.Confirm(pc.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "payload", got.Payload)
	assert.Equal(t, ConfirmReboot, got.Kind)
	assert.Equal(t, 0, c.Len())

	_, err = c.Confirm(pc.ID, owner)
	assert.ErrorIs(t, err, ErrUnknownConfirmation)
}

func TestConfirmationsLateAnswer(t *testing.T) {
	c := NewConfirmations()
	now := time.Now()
	c.now = func() time.Time { return now }

	pc := c.Request(ConfirmDeleteFiles, 1, 0, nil)
	assert.Equal(t, now.Add(10*time.Second), pc.Deadline)

	c.now = func() time.Time { return now.Add(11 * time.Second) }
	_, err := c.Confirm(pc.ID, 1)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, 0, c.Len())
}

func TestConfirmationsExpire(t *testing.T) {
	c := NewConfirmations()
	now := time.Now()
	c.now = func() time.Time { return now }

	short := c.Request(ConfirmLargeDownload, 1, time.Second, nil)
	long := c.Request(ConfirmLargeDownload, 1, time.Minute, nil)
	c.Attach(short.ID, 10, 20)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	expired := c.Expire()
	require.Len(t, expired, 1)
	assert.Equal(t, short.ID, expired[0].ID)
	assert.Equal(t, snowflake.ID(10), expired[0].ChannelID)
	assert.Equal(t, snowflake.ID(20), expired[0].MessageID)

	assert.Equal(t, 1, c.Len())
	_, err := c.Confirm(long.ID, 1)
	assert.NoError(t, err)
}
