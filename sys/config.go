package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
)

type Config struct {
	Token         string
	GuildID       string
	DatabasePath  string
	OwnerIDs      []string
	Silent        bool
	AdminRoleName string
	AdminUserID   snowflake.ID
	AdminUsername string
	DownloadDir   string
	CacheManifest string
	QueueBackup   string
	DownloadMode  bool
	YoutubeProxy  string
	LogFile       string
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	downloadMode := true
	if v := os.Getenv("DOWNLOAD_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			downloadMode = b
		}
	}

	var adminID snowflake.ID
	if v := strings.TrimSpace(os.Getenv("ADMIN_USER_ID")); v != "" {
		id, err := snowflake.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_USER_ID: %w", err)
		}
		adminID = id
	}

	var ownerIDs []string
	if v := os.Getenv("OWNER_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ownerIDs = append(ownerIDs, id)
			}
		}
	}

	cfg := &Config{
		Token:         os.Getenv("DISCORD_TOKEN"),
		GuildID:       os.Getenv("GUILD_ID"),
		DatabasePath:  dbPath,
		OwnerIDs:      ownerIDs,
		Silent:        silent,
		AdminRoleName: envOr("ADMIN_ROLE_NAME", "Bottiadmin"),
		AdminUserID:   adminID,
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		DownloadDir:   envOr("DOWNLOAD_DIR", ".tracks"),
		CacheManifest: envOr("CACHE_MANIFEST", "downloads.json"),
		QueueBackup:   envOr("QUEUE_BACKUP", "queue_backup.json"),
		DownloadMode:  downloadMode,
		YoutubeProxy:  os.Getenv("YOUTUBE_PROXY"),
		LogFile:       os.Getenv("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" {
		if len(c.GuildID) < 17 || len(c.GuildID) > 20 {
			return fmt.Errorf(MsgConfigInvalidGuild)
		}
		if _, err := snowflake.Parse(c.GuildID); err != nil {
			return fmt.Errorf(MsgConfigInvalidGuild)
		}
	}
	return nil
}

// IsOwner reports whether id is listed in OWNER_IDS.
func (c *Config) IsOwner(id snowflake.ID) bool {
	s := id.String()
	for _, o := range c.OwnerIDs {
		if o == s {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "jukebox"
	if err == nil {
		projectName = strings.TrimSuffix(filepath.Base(exePath), ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
