package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leeineian/jukebox/home"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"golang.org/x/sync/errgroup"
)

func main() {
	// LogFatal panics so defers run
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok {
				fmt.Fprintf(os.Stderr, "\n[FATAL] %s\n", msg)
				os.Exit(1)
			}
			panic(r)
		}
	}()

	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.LogError(sys.MsgConfigFailedToLoad, err)
	}

	silent := flag.Bool("silent", false, "Disable all log output")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	clearAll := flag.Bool("clear-all", false, "Force command re-registration")
	flag.Parse()

	logFile := ""
	if cfg != nil {
		logFile = cfg.LogFile
		*silent = *silent || cfg.Silent
	}
	sys.InitLogger(*silent, logFile)
	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())
	if p := sys.GetLogPath(); p != "" {
		sys.LogInfo(sys.MsgBotLogFile, p)
	}

	f, err := os.OpenFile(".bot.pid", os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		sys.LogFatal("Failed to open PID file: %v", err)
	}
	defer f.Close()

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK {
			sys.LogFatal("Failed to lock PID file: %v", err)
		}

		var oldPid int
		_, _ = f.Seek(0, 0)
		if _, scanErr := fmt.Fscanf(f, "%d", &oldPid); scanErr != nil {
			time.Sleep(100 * time.Millisecond)
			_ = f.Close()
			f, _ = os.OpenFile(".bot.pid", os.O_RDWR|os.O_CREATE, 0644)
			continue
		}
		if oldPid == os.Getpid() {
			break
		}

		process, procErr := os.FindProcess(oldPid)
		if procErr != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		sys.LogInfo(sys.MsgBotKillingOld, oldPid)
		_ = process.Signal(syscall.SIGTERM)

		terminated := false
		for range 50 {
			if err := process.Signal(syscall.Signal(0)); err != nil {
				terminated = true
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if !terminated {
			sys.LogWarn("Old process %d is stubborn. Sending SIGKILL...", oldPid)
			_ = process.Signal(syscall.SIGKILL)
			time.Sleep(200 * time.Millisecond)
		}
		sys.LogInfo(sys.MsgBotOldTerminated)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d", os.Getpid())
	_ = f.Sync()

	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = os.Remove(".bot.pid")
	}()

	if err := run(cfg, *silent, *skipReg, *clearAll); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}

	if sys.RestartRequested {
		sys.LogInfo("Self-restarting process...")
		// syscall.Exec skips defers
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(".bot.pid")

		args := os.Args
		hasSkipReg := false
		for _, arg := range args {
			if arg == "-skip-reg" {
				hasSkipReg = true
				break
			}
		}
		if !hasSkipReg {
			args = append(args, "-skip-reg")
		}

		exePath, err := os.Executable()
		if err != nil {
			sys.LogFatal("Failed to resolve executable path: %v", err)
		}
		if err := syscall.Exec(exePath, args, os.Environ()); err != nil {
			sys.LogFatal("Failed to re-execute: %v", err)
		}
	}
}

func run(cfg *sys.Config, silent bool, skipReg bool, clearAll bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	sys.SetAppContext(ctx)

	if cfg == nil {
		var err error
		cfg, err = sys.LoadConfig()
		if err != nil {
			return fmt.Errorf(sys.MsgConfigFailedToLoad, err)
		}
	}

	if err := sys.InitDatabase(ctx, cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sys.CloseDatabase()

	sys.SetVerbose(sys.GetBoolSetting(ctx, sys.KeyVerboseLog, false))
	download := sys.GetBoolSetting(ctx, sys.KeyDownloadMode, cfg.DownloadMode)

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	client, err := sys.CreateClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}
	defer client.Close(ctx)

	ytdlp := &proc.YTDLP{Proxy: cfg.YoutubeProxy}
	resolver := proc.NewResolver(
		proc.NewYTSearch(&http.Client{Timeout: 15 * time.Second}),
		proc.YTMusicSearch{},
		ytdlp,
	)
	store := proc.OpenStore(cfg.CacheManifest)
	voice := proc.NewVoiceOutput(client, ytdlp)
	notify := home.NewChannelNotifier(client)
	sched := proc.NewScheduler(voice, store, notify)

	jb := proc.New(proc.Deps{
		Resolver:    resolver,
		Prober:      ytdlp,
		Downloader:  ytdlp,
		Cache:       store,
		Scheduler:   sched,
		Backups:     proc.NewBackupManager(cfg.QueueBackup),
		Confirms:    proc.NewConfirmations(),
		Pool:        proc.NewPool(proc.DefaultWorkers),
		DownloadDir: cfg.DownloadDir,
		Download:    download,
	})
	defer jb.Close()

	home.Bind(&home.Player{Jukebox: jb, Voice: voice, Notify: notify})
	go sched.Run(ctx)

	var g errgroup.Group
	g.Go(func() error {
		if n := jb.SweepCache(); n > 0 {
			sys.LogCache(sys.MsgLogCacheSwept, n)
		}
		return nil
	})
	g.Go(func() error {
		if skipReg {
			sys.LogInfo("Skipping command registration as requested.")
			return nil
		}
		if err := sys.RegisterCommands(client, cfg.GuildID, clearAll); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := client.OpenGateway(ctx); err != nil {
			return fmt.Errorf("failed to open gateway: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	<-ctx.Done()
	if !silent {
		fmt.Println()
	}

	sys.LogInfo("Shutting down all daemons...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	sys.ShutdownDaemons(shutdownCtx)

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	voice.Leave(leaveCtx)
	<-sched.Done()

	if botUser, ok := client.Caches.SelfUser(); ok {
		sys.LogInfo(sys.MsgBotShutdown, botUser.Username)
	} else {
		sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())
	}
	return nil
}
