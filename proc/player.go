package proc

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

// VoiceOutput plays sources into one guild voice channel.
type VoiceOutput struct {
	client   *bot.Client
	streamer Streamer
	volume   atomic.Int32

	mu        sync.Mutex
	conn      voice.Conn
	guildID   snowflake.ID
	channelID snowflake.ID
	cancel    context.CancelFunc

	pauseMu   sync.RWMutex
	pauseChan chan struct{}
}

func NewVoiceOutput(client *bot.Client, streamer Streamer) *VoiceOutput {
	o := &VoiceOutput{
		client:    client,
		streamer:  streamer,
		pauseChan: make(chan struct{}),
	}
	close(o.pauseChan)
	o.volume.Store(DefaultVolume)
	return o
}

// Join connects to channelID, retrying with exponential backoff. Joining the
// channel already held is a no-op.
func (o *VoiceOutput) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn != nil && o.guildID == guildID && o.channelID == channelID {
		return nil
	}
	if o.conn != nil && o.guildID != guildID {
		o.conn.Close(ctx)
		o.conn = nil
	}
	if o.conn == nil {
		o.conn = o.client.VoiceManager.CreateConn(guildID)
		o.guildID = guildID
	}

	var lastErr error
	for i := range 5 {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			sys.LogMusic(sys.MsgLogVoiceRetry, backoff, i+1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := o.conn.Open(ctx, channelID, false, false); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		sys.LogMusicError(sys.MsgLogVoiceFail, lastErr)
		o.conn.Close(ctx)
		o.conn = nil
		o.channelID = 0
		return lastErr
	}
	o.channelID = channelID
	return nil
}

// Leave stops playback and closes the voice connection.
func (o *VoiceOutput) Leave(ctx context.Context) {
	o.Stop()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		o.conn.Close(ctx)
	}
	o.conn = nil
	o.channelID = 0
}

// Forget drops the connection reference after the gateway reported the bot
// left voice on its own.
func (o *VoiceOutput) Forget() {
	o.Stop()
	o.mu.Lock()
	o.conn = nil
	o.channelID = 0
	o.mu.Unlock()
}

// GuildID returns the guild of the current connection, or 0.
func (o *VoiceOutput) GuildID() snowflake.ID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.guildID
}

// ChannelID returns the joined channel, or 0.
func (o *VoiceOutput) ChannelID() snowflake.ID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channelID
}

// Play starts src and returns a channel that receives the outcome once the
// track finishes or is stopped.
func (o *VoiceOutput) Play(ctx context.Context, src Source) (<-chan error, error) {
	if src.IsFile() {
		if _, err := os.Stat(src.Path); err != nil {
			return nil, err
		}
	}

	o.mu.Lock()
	if o.conn == nil {
		o.mu.Unlock()
		return nil, ErrNotConnected
	}
	if o.cancel != nil {
		o.cancel()
	}
	playCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	conn := o.conn
	o.mu.Unlock()

	o.SetPaused(false)

	ended := make(chan error, 1)
	go func() {
		defer close(ended)
		defer cancel()
		ended <- o.run(playCtx, conn, src)
	}()
	return ended, nil
}

func (o *VoiceOutput) run(ctx context.Context, conn voice.Conn, src Source) error {
	p := NewStreamProvider(ctx, o.gate)
	done := make(chan struct{})
	p.OnFinish = func() { close(done) }

	input, reader := src.Path, io.Reader(nil)
	if !src.IsFile() {
		input = ""
		pr, pw := io.Pipe()
		reader = pr
		go func() {
			pw.CloseWithError(o.streamer.Stream(ctx, src.URL, pw))
		}()
		context.AfterFunc(ctx, func() { pr.CloseWithError(ctx.Err()) })
	}

	errc := make(chan error, 1)
	go func() {
		defer p.PushFrame(nil)
		t := NewAstiavTranscoder(&o.volume)
		defer t.Close()
		errc <- t.Run(ctx, input, reader, p.PushFrame)
	}()

	setOpusFrameProviderSafe(ctx, conn, p)
	setSpeakingSafe(ctx, conn, voice.SpeakingFlagMicrophone)

	select {
	case <-done:
	case <-ctx.Done():
	}

	setOpusFrameProviderSafe(context.Background(), conn, nil)
	setSpeakingSafe(context.Background(), conn, 0)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			sys.LogMusicError(sys.MsgLogTranscoderFail, src, err)
			return err
		}
	default:
	}
	return nil
}

// Stop ends the current track, if any.
func (o *VoiceOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *VoiceOutput) SetPaused(paused bool) {
	o.pauseMu.Lock()
	defer o.pauseMu.Unlock()

	select {
	case <-o.pauseChan:
		if paused {
			o.pauseChan = make(chan struct{})
		}
	default:
		if !paused {
			close(o.pauseChan)
		}
	}
}

func (o *VoiceOutput) gate() <-chan struct{} {
	o.pauseMu.RLock()
	defer o.pauseMu.RUnlock()
	return o.pauseChan
}

// SetVolume takes a percentage; 100 leaves samples untouched.
func (o *VoiceOutput) SetVolume(volume int) {
	o.volume.Store(int32(volume))
}

// setOpusFrameProviderSafe retries when the connection panics mid-handshake.
func setOpusFrameProviderSafe(ctx context.Context, conn voice.Conn, provider voice.OpusFrameProvider) {
	for i := range 3 {
		if trySetOpusFrameProvider(conn, provider) {
			return
		}
		if i < 2 {
			select {
			case <-time.After(150 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}
	sys.LogMusicError("Exhausted retries for SetOpusFrameProvider")
}

func trySetOpusFrameProvider(conn voice.Conn, provider voice.OpusFrameProvider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	conn.SetOpusFrameProvider(provider)
	return true
}

func setSpeakingSafe(ctx context.Context, conn voice.Conn, flags voice.SpeakingFlags) {
	for i := range 3 {
		if trySetSpeaking(ctx, conn, flags) {
			return
		}
		if i < 2 {
			select {
			case <-time.After(150 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}
	sys.LogMusicError("Exhausted retries for SetSpeaking")
}

func trySetSpeaking(ctx context.Context, conn voice.Conn, flags voice.SpeakingFlags) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	conn.SetSpeaking(ctx, flags)
	return true
}
