package sys

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() {
		CloseDatabase()
		DB = nil
	})
}

func TestBotConfigRoundTrip(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	v, err := GetBotConfig(ctx, KeyCommandHash)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetBotConfig(ctx, KeyCommandHash, "abc"))
	require.NoError(t, SetBotConfig(ctx, KeyCommandHash, "def"))
	v, err = GetBotConfig(ctx, KeyCommandHash)
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestBoolSetting(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	assert.True(t, GetBoolSetting(ctx, KeyDownloadMode, true))
	require.NoError(t, SetBoolSetting(ctx, KeyDownloadMode, false))
	assert.False(t, GetBoolSetting(ctx, KeyDownloadMode, true))

	require.NoError(t, SetBotConfig(ctx, KeyVerboseLog, "maybe"))
	assert.True(t, GetBoolSetting(ctx, KeyVerboseLog, true))
}

func TestParseConfirmID(t *testing.T) {
	tests := []struct {
		in     string
		id     string
		accept bool
		ok     bool
	}{
		{"confirm:1234:yes", "1234", true, true},
		{"confirm:1234:no", "1234", false, true},
		{"confirm:a:b:yes", "a:b", true, true},
		{"confirm:1234:maybe", "", false, false},
		{"confirm::yes", "", false, false},
		{"np:skip", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, accept, ok := ParseConfirmID(tt.in)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.accept, accept)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "ééé...", Truncate("éééééééé", 6))
}

func TestFormatMB(t *testing.T) {
	assert.InDelta(t, 250.0, FormatMB(250<<20), 1e-9)
	assert.InDelta(t, 0.5, FormatMB(512<<10), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Token: "t"}).Validate())
	assert.NoError(t, (&Config{Token: "t", GuildID: "123456789012345678"}).Validate())
	assert.Error(t, (&Config{Token: "t", GuildID: "123"}).Validate())
	assert.Error(t, (&Config{Token: "t", GuildID: "12345678901234567x"}).Validate())
}

func TestConfigIsOwner(t *testing.T) {
	cfg := &Config{OwnerIDs: []string{"111", "222"}}
	assert.True(t, cfg.IsOwner(snowflake.ID(222)))
	assert.False(t, cfg.IsOwner(snowflake.ID(333)))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ADMIN_USER_ID", "42")
	t.Setenv("OWNER_IDS", " 1 , ,2")
	t.Setenv("DOWNLOAD_MODE", "false")
	t.Setenv("ADMIN_ROLE_NAME", "")
	t.Setenv("DOWNLOAD_DIR", "")
	t.Setenv("GUILD_ID", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), cfg.AdminUserID)
	assert.Equal(t, []string{"1", "2"}, cfg.OwnerIDs)
	assert.False(t, cfg.DownloadMode)
	assert.Equal(t, "Bottiadmin", cfg.AdminRoleName)
	assert.Equal(t, ".tracks", cfg.DownloadDir)
}

func TestLoadConfigBadAdminID(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ADMIN_USER_ID", "not-a-number")
	t.Setenv("GUILD_ID", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}
