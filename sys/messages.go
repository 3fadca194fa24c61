package sys

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgConfigInvalidGuild  = "invalid GUILD_ID: must be a valid Snowflake"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDatabaseSettingFail = "Failed to persist setting %s: %v"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotLogFile          = "Writing logs to %s"
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "Commands are up to date. (Hash: %s)"
	MsgLoaderCleanup        = "Removing commands from previous guild: %s"
	MsgLoaderDevStarting    = "Registering commands to guild: %s"
	MsgLoaderDevRegistered  = "Registered: %s"
	MsgLoaderDevFail        = "Guild registration failed: %v"
	MsgLoaderProdStarting   = "Registering commands globally..."
	MsgLoaderProdRegistered = "Registered: %s"
	MsgLoaderProdFail       = "Global registration failed: %w"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"

	// --- Music: playback ---
	MsgMusicJoined          = "Joined voice channel %s"
	MsgMusicJoinFail        = "Unable to join voice channel %s"
	MsgMusicNotInVoice      = "You must be in a voice channel to use this command"
	MsgMusicNowPlaying      = "Now playing: %s (%s)"
	MsgMusicAdded           = "Added to queue: %s (%s)"
	MsgMusicAddedNext       = "Added to queue (next): %s (%s)"
	MsgMusicQueueEnded      = "No more songs in queue."
	MsgMusicNextFailed      = "Failed to play the next track."
	MsgMusicPlayFailed      = "Failed to play the requested track."
	MsgMusicEnqueueFailed   = "Failed to add track to queue."
	MsgMusicSkipped         = "Skipped the current track"
	MsgMusicNothingPlaying  = "No track is currently playing"
	MsgMusicNoPrevious      = "No previous track to play."
	MsgMusicPrevious        = "Going back to: %s (%s)"
	MsgMusicStopped         = "Stopped playback and left the voice channel."
	MsgMusicNotConnected    = "Not currently in a voice channel"
	MsgMusicPauseNothing    = "No audio is playing to pause"
	MsgMusicAlreadyPaused   = "Audio is already paused"
	MsgMusicPaused          = "Audio paused"
	MsgMusicResumeNothing   = "No audio is playing to resume"
	MsgMusicResumed         = "Resuming audio"
	MsgMusicNotPaused       = "Audio is not paused"
	MsgMusicVolumeRange     = "Volume must be between 1 and 100."
	MsgMusicVolumeSet       = "Volume set to %d%%"
	MsgMusicCurrent         = "Currently playing: **%s** (%s)"
	MsgMusicNoCurrent       = "No song is currently playing."
	MsgMusicNotFound        = "No results found for **%s**."
	MsgMusicResolveFailed   = "Could not resolve **%s**: %s"
	MsgMusicRejected        = "Request rejected: %s."
	MsgMusicTooLargeQueue   = "Track **%s** (~%.1f MB) is too large to queue without confirmation. Use /play for this track."
	MsgMusicTooLargePlayTop = "Track **%s** (~%.1f MB) is too large to play without confirmation. Use /play for this track."
	MsgMusicConfirmLarge    = "Track **%s** is large (~%.1f MB). Confirm download?"
	MsgMusicConfirmTimeout  = "Confirmation timed out. Cancelling the play request."
	MsgMusicDownloadCancel  = "Download canceled."
	MsgMusicRequested       = "Requested **%s** (%s)"
	MsgMusicModeDownload    = "download-and-play"
	MsgMusicModeStream      = "stream-only"

	// --- Music: queue views ---
	MsgQueueEmpty          = "Queue is empty."
	MsgQueueHeader         = "Upcoming songs:"
	MsgQueueLine           = "%d. %s (%s)"
	MsgQueueMore           = "...and %d more."
	MsgHistoryEmpty        = "No songs have been requested this session."
	MsgHistoryHeader       = "Songs requested this session:"
	MsgHistoryLine         = "%d. %s (%s) %s"
	MsgQueueNothingToClear = "There is no queue to clear"
	MsgQueueCleared        = "Queue cleared (downloaded files retained)."
	MsgQueueClearedAsk     = "Queue cleared. Delete all downloaded files from disk?"
	MsgQueueClearedKeep    = "Queue cleared. Downloaded files retained."
	MsgQueueClearedTimeout = "No answer received. Keeping downloaded files."
	MsgQueueClearedPurged  = "Queue cleared and %d files deleted from disk."
	MsgQueuePurged         = "Purged %d files from disk."
	MsgQueueRestoredMemory = "Queue restored from recent clear."
	MsgQueueRestoredFile   = "Queue restored from reboot backup."
	MsgQueueRestoreBusy    = "Cannot restore: the queue is not empty."
	MsgQueueRestoreStale   = "Backup is older than 10 minutes and cannot be restored."
	MsgQueueRestoreNone    = "No queue backup available to restore."
	MsgQueueRestoreFailed  = "Failed to restore backup due to an error."

	// --- Admin ---
	MsgAdminDenied          = "You do not have permission to use this command."
	MsgAdminVerboseOn       = "Verbose logging enabled."
	MsgAdminVerboseOff      = "Verbose logging disabled."
	MsgAdminModeSet         = "Playback mode set to **%s**."
	MsgAdminRebootAsk       = "Confirm reboot?"
	MsgAdminRebootTimeout   = "Reboot cancelled (no response)."
	MsgAdminRebooting       = "**Rebooting now...**"
	MsgAdminRebootCancelled = "Reboot cancelled."
	MsgAdminRebootBy        = "Reboot commanded by user %s (%s)"
	MsgAdminVerboseBy       = "Logging level toggled by %s: %s"
	MsgAdminModeBy          = "Download mode toggled by %s: now %s"

	MsgHelp = "**Music Playback Commands:**\n" +
		"/join - Join your voice channel.\n" +
		"/play <URL or search> - Play a song (or add to queue if something is already playing).\n" +
		"/playtop <query> - Play a song next (skip ahead of the queue).\n" +
		"/enqueue <query> - Add a song to the queue (aliases: /queue, /q).\n" +
		"/queuelist - Show the upcoming songs in the queue.\n" +
		"/skip - Skip the current track.\n" +
		"/stop - Stop playback and disconnect the bot.\n" +
		"/pause - Pause the current playing audio.\n" +
		"/resume - Resume the paused audio.\n" +
		"/now (alias: /nytsoi) - Show the currently playing song.\n" +
		"/getqueue - List all songs requested this session and their status.\n" +
		"/volume <1-100> - Set the playback volume.\n" +
		"\n**Queue Management Commands:**\n" +
		"/clear_queue - Clear the song queue (admins will be prompted to delete files).\n" +
		"/purgequeue - Delete all downloaded song files (except the current one).\n" +
		"/restorequeue - Restore the last cleared or saved queue (admin only, within 10 min).\n" +
		"\n**Admin Commands:**\n" +
		"/togglelog - Toggle verbose logging on/off.\n" +
		"/toggledownload - Toggle between download mode and streaming mode.\n" +
		"/reboot - Reboot the bot (asks for confirmation)."

	// --- Confirmation buttons ---
	MsgConfirmYes        = "Yes"
	MsgConfirmNo         = "No"
	MsgConfirmNotYours   = "Only the person who asked can answer this."
	MsgConfirmExpired    = "This confirmation has expired."
	MsgControlPrevious   = "Previous"
	MsgControlPause      = "Pause/Resume"
	MsgControlSkip       = "Skip"
	MsgControlPausedBy   = "Paused by %s"
	MsgControlResumedBy  = "Resumed by %s"
	MsgControlSkippedBy  = "Skipped by %s"
	MsgControlPreviousBy = "Going back, requested by %s"

	// --- Engine logs ---
	MsgLogPlaying         = "Playing: %s (%s)"
	MsgLogPlaybackError   = "Playback error for %s: %v"
	MsgLogPlaybackStart   = "Failed to start %s: %v"
	MsgLogCacheExpired    = "Removed expired file: %s"
	MsgLogCacheSwept      = "Swept %d expired downloads"
	MsgLogCacheEvicted    = "Evicted %s (%s)"
	MsgLogCacheHit        = "Cache hit for %s: %s"
	MsgLogCachePurged     = "Purged cached file %s"
	MsgLogCacheRemoveFail = "Error removing file %s: %v"
	MsgLogCacheSaveFail   = "Could not save cache manifest: %v"
	MsgLogCacheLoadFail   = "Could not load cache manifest: %v"
	MsgLogEvictionArmed   = "Eviction of %s scheduled in %v"
	MsgLogEvictionCancel  = "Eviction of %s cancelled"
	MsgLogDownloadFail    = "Download failed for %s, streaming instead: %v"
	MsgLogBackupSaved     = "Queue backup written: %d tracks"
	MsgLogBackupRestored  = "Queue restored: %d tracks"
	MsgLogQueueAdded      = "Track added to queue: %s (%s) at %d"
	MsgLogSearchBackend   = "Search backend %s failed for %q: %v"
	MsgLogNotifyFail      = "Failed to post notification: %v"
	MsgLogVoiceRetry      = "Retrying voice connection in %v (Attempt %d/5)"
	MsgLogVoiceFail       = "Failed to connect to voice after 5 attempts: %v"
	MsgLogTranscoderFail  = "Transcoder failed for %s: %v"
)
