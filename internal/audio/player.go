package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"

	"github.com/selfmusic/player/internal/config"
)

var speakerInitialized = false
var speakerMutex sync.Mutex

// Player is the beep-backed playback output. SetSource loads asynchronously;
// a source change during loading aborts the stale load.
type Player struct {
	mu sync.Mutex

	cfg        *config.Config
	sampleRate beep.SampleRate
	httpClient *http.Client
	userAgent  string
	debug      bool

	source     string
	generation int
	loadCancel context.CancelFunc

	reader   io.Closer
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	vol      float64
	loaded   bool
	playing  bool
	ended    bool
	wantPlay bool

	onLoaded func(float64)
	onPlay   func()
	onEnded  func()
	onError  func(error)
}

func NewPlayer(cfg *config.Config) (*Player, error) {
	p := &Player{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sampleRate: beep.SampleRate(cfg.Audio.SampleRate),
		userAgent:  cfg.API.UserAgent,
		vol:        cfg.Audio.DefaultVolume,
		debug:      cfg.Debug,
	}

	if err := p.initializeSpeaker(); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	if p.debug {
		log.Printf("[AUDIO] Player initialized on %s with sample rate: %d", runtime.GOOS, p.sampleRate)
	}

	return p, nil
}

func (p *Player) initializeSpeaker() error {
	speakerMutex.Lock()
	defer speakerMutex.Unlock()

	if speakerInitialized {
		return nil
	}

	bufferSize := p.sampleRate.N(time.Second / 10)
	if runtime.GOOS == "linux" {
		bufferSize = p.sampleRate.N(time.Second / 5)
	}

	if err := speaker.Init(p.sampleRate, bufferSize); err != nil {
		return fmt.Errorf("speaker initialization failed: %w", err)
	}

	speakerInitialized = true
	return nil
}

func (p *Player) SetSource(url string) {
	p.mu.Lock()

	if p.loadCancel != nil {
		p.loadCancel()
	}
	p.stopLocked()

	p.source = url
	p.generation++
	gen := p.generation
	p.loaded = false
	p.ended = false
	p.wantPlay = false

	ctx, cancel := context.WithCancel(context.Background())
	p.loadCancel = cancel
	p.mu.Unlock()

	if p.debug {
		log.Printf("[AUDIO] Loading source: %s", url)
	}

	go p.load(ctx, gen, url)
}

func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Player) load(ctx context.Context, gen int, url string) {
	var reader io.ReadCloser
	var err error

	if strings.Contains(url, "://") && !strings.HasPrefix(url, "file://") {
		reader = NewStreamReader(ctx, p.httpClient, url, p.userAgent, p.debug)
	} else {
		path := strings.TrimPrefix(url, "file://")
		reader, err = os.Open(path)
	}

	if err != nil {
		p.loadFailed(gen, fmt.Errorf("open audio source: %w", err))
		return
	}

	streamer, format, err := mp3.Decode(reader)
	if err != nil {
		if closeErr := reader.Close(); closeErr != nil && p.debug {
			log.Printf("[AUDIO] Error closing reader: %v", closeErr)
		}
		p.loadFailed(gen, fmt.Errorf("decode mp3: %w", err))
		return
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		if p.debug {
			log.Printf("[AUDIO] Source changed during loading, aborting")
		}
		if closeErr := streamer.Close(); closeErr != nil && p.debug {
			log.Printf("[AUDIO] Error closing streamer: %v", closeErr)
		}
		return
	}

	p.reader = reader
	p.streamer = streamer
	p.format = format
	duration := format.SampleRate.D(streamer.Len())

	p.queueLocked(gen)
	p.loaded = true

	started := p.wantPlay
	p.wantPlay = false
	if started {
		speaker.Lock()
		p.ctrl.Paused = false
		speaker.Unlock()
		p.playing = true
	}

	cbLoaded := p.onLoaded
	cbPlay := p.onPlay
	p.mu.Unlock()

	if p.debug {
		log.Printf("[AUDIO] Loaded source, duration: %v", duration)
	}

	if cbLoaded != nil {
		cbLoaded(duration.Seconds())
	}
	if started && cbPlay != nil {
		cbPlay()
	}
}

func (p *Player) loadFailed(gen int, err error) {
	p.mu.Lock()
	stale := gen != p.generation
	cb := p.onError
	p.mu.Unlock()

	if stale {
		return
	}
	if p.debug {
		log.Printf("[AUDIO] Load failed: %v", err)
	}
	if cb != nil {
		cb(err)
	}
}

// queueLocked builds the playback chain paused and hands it to the speaker.
// Callers hold p.mu.
func (p *Player) queueLocked(gen int) {
	resampled := beep.Resample(4, p.format.SampleRate, p.sampleRate, p.streamer)
	p.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
	p.volume = &effects.Volume{
		Streamer: p.ctrl,
		Base:     2,
		Volume:   (p.vol - 1) * 5,
		Silent:   p.vol == 0,
	}

	speaker.Clear()
	speaker.Play(beep.Seq(p.volume, beep.Callback(func() {
		p.signalEnded(gen)
	})))
}

// signalEnded hands track completion off the speaker goroutine. The
// callback fires while the speaker lock is held, and ended handling seeks
// or clears the speaker, so it must not run inline.
func (p *Player) signalEnded(gen int) {
	go p.handleEnded(gen)
}

func (p *Player) handleEnded(gen int) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.ended = true
	cb := p.onEnded
	p.mu.Unlock()

	if p.debug {
		log.Printf("[AUDIO] Playback finished")
	}
	if cb != nil {
		cb()
	}
}

func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()

	if err := ctx.Err(); err != nil {
		p.mu.Unlock()
		return err
	}

	if !p.loaded {
		p.wantPlay = true
		p.mu.Unlock()
		return nil
	}

	if p.ended {
		// The finished sequence was consumed; rewind and requeue.
		if err := p.streamer.Seek(0); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("rewind: %w", err)
		}
		p.queueLocked(p.generation)
		p.ended = false
	}

	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.playing = true

	cb := p.onPlay
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil && p.playing {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
		p.playing = false
	}
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vol = v
	if p.volume != nil {
		speaker.Lock()
		p.volume.Volume = (v - 1) * 5
		p.volume.Silent = v == 0
		speaker.Unlock()
	}
}

func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return nil
	}

	pos := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if pos < 0 {
		pos = 0
	}
	if max := p.streamer.Len() - 1; pos > max {
		pos = max
	}

	speaker.Lock()
	err := p.streamer.Seek(pos)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Position()).Seconds()
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len()).Seconds()
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Player) OnLoaded(fn func(float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoaded = fn
}

func (p *Player) OnPlay(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPlay = fn
}

func (p *Player) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = fn
}

func (p *Player) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// stopLocked tears down the current chain. Callers hold p.mu.
func (p *Player) stopLocked() {
	if p.playing || p.ctrl != nil {
		speaker.Clear()
	}

	if p.streamer != nil {
		if closeErr := p.streamer.Close(); closeErr != nil && p.debug {
			log.Printf("[AUDIO] Error closing streamer: %v", closeErr)
		}
		p.streamer = nil
	}
	if p.reader != nil {
		if closeErr := p.reader.Close(); closeErr != nil && p.debug {
			log.Printf("[AUDIO] Error closing reader: %v", closeErr)
		}
		p.reader = nil
	}

	p.ctrl = nil
	p.volume = nil
	p.playing = false
	p.loaded = false
	p.ended = false
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loadCancel != nil {
		p.loadCancel()
	}
	p.stopLocked()
	p.source = ""
	p.generation++
	return nil
}
