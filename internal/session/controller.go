// Package session owns the interpreter session state and every transition of
// the record, transcribe, translate, synthesize and playback flow.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/loqalabs/loqa-translate/internal/audio"
	"github.com/loqalabs/loqa-translate/internal/capture"
	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/loqalabs/loqa-translate/internal/eventstore"
	"github.com/loqalabs/loqa-translate/internal/translate"
	"github.com/loqalabs/loqa-translate/internal/tts"
)

const (
	defaultTranslateTimeout  = 15 * time.Second
	defaultSynthesizeTimeout = 30 * time.Second
)

// EventSink records timeline events. *eventstore.Store satisfies it.
type EventSink interface {
	AppendEvent(ctx context.Context, evt eventstore.Event) error
}

// Options carries the collaborators of a Controller. Capture, Translator,
// Synthesizer and Audio are required; the rest have defaults.
type Options struct {
	SessionID         string
	Capture           capture.Capability
	Translator        translate.Translator
	Synthesizer       tts.Synthesizer
	Voices            tts.Voices
	Audio             *audio.Store
	Events            EventSink
	Logger            *slog.Logger
	TranslateTimeout  time.Duration
	SynthesizeTimeout time.Duration
}

// Controller mediates every change to the session state. Each transition is a
// complete read-modify-write under mu; translation and synthesis run on
// goroutines and re-enter mu to apply their results.
type Controller struct {
	cfg        config.SessionConfig
	sessionID  string
	capture    capture.Capability
	translator translate.Translator
	synth      tts.Synthesizer
	voices     tts.Voices
	audio      *audio.Store
	events     EventSink
	logger     *slog.Logger
	metrics    *metrics

	translateTimeout  time.Duration
	synthesizeTimeout time.Duration

	mu           sync.Mutex
	state        State
	translateSeq uint64
	synthSeq     uint64
	captureRun   uint64
	closed       bool

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.SessionConfig, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	capability := opts.Capture
	if capability == nil {
		capability = capture.NewNoop()
	}
	voices := opts.Voices
	if voices.English == "" || voices.Default == "" {
		voices = tts.DefaultVoices
	}
	store := opts.Audio
	if store == nil {
		store = audio.NewStore("")
	}
	translateTimeout := opts.TranslateTimeout
	if translateTimeout <= 0 {
		translateTimeout = defaultTranslateTimeout
	}
	synthesizeTimeout := opts.SynthesizeTimeout
	if synthesizeTimeout <= 0 {
		synthesizeTimeout = defaultSynthesizeTimeout
	}

	source, target := cfg.SourceLanguage, cfg.TargetLanguage
	if source == "" {
		source = "es"
	}
	if target == "" {
		target = "en"
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:               cfg,
		sessionID:         opts.SessionID,
		capture:           capability,
		translator:        opts.Translator,
		synth:             opts.Synthesizer,
		voices:            voices,
		audio:             store,
		events:            opts.Events,
		logger:            logger.With(slog.String("component", "session"), slog.String("session_id", opts.SessionID)),
		translateTimeout:  translateTimeout,
		synthesizeTimeout: synthesizeTimeout,
		listeners:         make(map[int]Listener),
		ctx:               ctx,
		cancel:            cancel,
		state: State{
			SessionID:        opts.SessionID,
			SourceLanguage:   source,
			TargetLanguage:   target,
			TranslatedText:   cfg.Placeholder,
			CaptureAvailable: capability.Available(),
		},
	}
	c.metrics = newMetrics(c.logger, store)
	capability.Subscribe(c)
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers l for snapshots and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.listenerMu.Unlock()
	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

// SetLanguage changes one side of the language pair. Any synthesized audio
// belongs to the old pair and is released.
func (c *Controller) SetLanguage(role Role, code string) error {
	if !config.IsSupportedLanguage(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch role {
	case RoleSource:
		c.state.SourceLanguage = code
	case RoleTarget:
		c.state.TargetLanguage = code
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	c.clearAudioLocked()
	if c.cfg.DiscardStaleResults {
		// audio still in flight was requested for the previous pair
		c.synthSeq++
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap, c.event(EventLanguageChanged, "role", string(role), "language", code))
	return nil
}

// SetInputText overwrites the input text. It has no other effect.
func (c *Controller) SetInputText(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.InputText = text
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// StartCapture starts listening in the source language. It fails without
// touching the state when no capability is available, a capture is already
// running, or the capability refuses to start.
func (c *Controller) StartCapture() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.capture.Available() {
		c.mu.Unlock()
		return ErrCaptureUnavailable
	}
	if c.state.IsRecording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	language := c.state.SourceLanguage
	// events still in flight from an earlier capture must not reach this one
	c.captureRun++
	c.capture.Subscribe(runHandler{c: c, run: c.captureRun})
	c.capture.Configure(language)
	if err := c.capture.Start(c.ctx); err != nil {
		c.mu.Unlock()
		c.logger.Warn("capture start failed", slogError(err))
		return fmt.Errorf("start capture: %w", err)
	}
	c.state.IsRecording = true
	c.clearAudioLocked()
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap, c.event(EventCaptureStarted, "language", language))
	return nil
}

// StopCapture stops listening and, when there is input text, translates it
// into the target language in the background.
func (c *Controller) StopCapture() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.IsRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("capture stop failed", slogError(err))
	}
	c.state.IsRecording = false
	events := []eventstore.Event{c.event(EventCaptureStopped)}
	if text := c.state.InputText; text != "" {
		events = append(events, c.finalizeLocked(text, c.state.TargetLanguage))
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap, events...)
	return nil
}

// OnCaptureUpdate applies a transcript update to the current capture.
// Interim text wins over final text; an update with neither leaves the input
// untouched.
func (c *Controller) OnCaptureUpdate(interim, final string) {
	c.captureUpdate(0, interim, final)
}

// OnCaptureError ends the recording. The error is logged, not surfaced.
func (c *Controller) OnCaptureError(code string) {
	c.captureError(0, code)
}

// OnCaptureEnd ends the recording without translating.
func (c *Controller) OnCaptureEnd() {
	c.captureEnd(0)
}

// runHandler binds capture events to the StartCapture call that subscribed
// it. Run 0 addresses whichever capture is current.
type runHandler struct {
	c   *Controller
	run uint64
}

func (h runHandler) OnCaptureUpdate(interim, final string) { h.c.captureUpdate(h.run, interim, final) }
func (h runHandler) OnCaptureError(code string) { h.c.captureError(h.run, code) }
func (h runHandler) OnCaptureEnd() { h.c.captureEnd(h.run) }

// staleRunLocked reports whether run belongs to a capture that was replaced.
func (c *Controller) staleRunLocked(run uint64) bool {
	return run != 0 && run != c.captureRun
}

func (c *Controller) captureUpdate(run uint64, interim, final string) {
	c.metrics.captureEvent("update")
	c.mu.Lock()
	if c.closed || c.staleRunLocked(run) {
		c.mu.Unlock()
		return
	}
	switch {
	case interim != "":
		c.state.InputText = interim
	case final != "":
		c.state.InputText = final
	default:
		c.mu.Unlock()
		return
	}
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) captureError(run uint64, code string) {
	c.metrics.captureEvent("error")
	c.logger.Warn("capture error", slog.String("code", code))
	c.endRecording(run, c.event(EventCaptureError, "code", code))
}

func (c *Controller) captureEnd(run uint64) {
	c.metrics.captureEvent("end")
	c.endRecording(run, c.event(EventCaptureEnded))
}

func (c *Controller) endRecording(run uint64, evt eventstore.Event) {
	c.mu.Lock()
	if c.staleRunLocked(run) {
		c.mu.Unlock()
		c.logger.Debug("ignoring event of a replaced capture", slog.String("type", evt.Type), slog.Uint64("run", run))
		return
	}
	if c.closed || !c.state.IsRecording {
		c.mu.Unlock()
		c.record(evt)
		return
	}
	c.state.IsRecording = false
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, evt)
}

// Translate translates the current input text, empty or not, into the target
// language in the background.
func (c *Controller) Translate() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	evt := c.finalizeLocked(c.state.InputText, c.state.TargetLanguage)
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, evt)
	return nil
}

// SpeakOriginal synthesizes the input text in the source language. The clip
// replaces the current audio handle.
func (c *Controller) SpeakOriginal() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.IsRecording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if c.state.InputText == "" {
		c.mu.Unlock()
		return ErrEmptyInput
	}
	evt := c.synthesizeLocked(c.state.InputText, c.state.SourceLanguage, audio.OriginOriginal)
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, evt)
	return nil
}

// TogglePlayback flips the playback preference and returns the new value.
// The flag gates nothing.
func (c *Controller) TogglePlayback() bool {
	c.mu.Lock()
	if c.closed {
		enabled := c.state.IsPlaybackEnabled
		c.mu.Unlock()
		return enabled
	}
	c.state.IsPlaybackEnabled = !c.state.IsPlaybackEnabled
	enabled := c.state.IsPlaybackEnabled
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, c.event(EventPlaybackToggled, "enabled", strconv.FormatBool(enabled)))
	return enabled
}

// Wait blocks until every translation and synthesis started so far, including
// the syntheses they chain into, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops an active capture, cancels in-flight calls, releases the audio
// handle and the capture capability.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.state.IsRecording {
		if err := c.capture.Stop(); err != nil {
			c.logger.Warn("capture stop failed", slogError(err))
		}
		c.state.IsRecording = false
	}
	c.clearAudioLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return c.capture.Close()
}

// finalizeLocked starts a background translation of text. Its result is
// applied only if no later translation was started meanwhile, unless stale
// results are allowed.
func (c *Controller) finalizeLocked(text, target string) eventstore.Event {
	c.translateSeq++
	seq := c.translateSeq
	c.wg.Add(1)
	go c.finalizeTranslation(seq, text, target)
	return c.event(EventTranslationStarted, "target_language", target, "seq", strconv.FormatUint(seq, 10))
}

func (c *Controller) finalizeTranslation(seq uint64, text, target string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.translateTimeout)
	defer cancel()
	started := time.Now()
	translated, err := c.translator.Translate(ctx, text, target)
	elapsed := time.Since(started)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cfg.DiscardStaleResults && seq != c.translateSeq {
		c.mu.Unlock()
		c.metrics.translation("stale")
		c.logger.Debug("discarding superseded translation", slog.Uint64("seq", seq))
		c.record(c.event(EventResultDiscarded, "kind", "translation", "seq", strconv.FormatUint(seq, 10)))
		return
	}
	if err != nil {
		c.state.TranslatedText = c.cfg.ErrorText
		snap := c.commitLocked()
		c.mu.Unlock()
		c.metrics.translation("error")
		c.logger.Warn("translation failed", slogError(err), slog.Duration("elapsed", elapsed))
		c.publish(snap, c.event(EventTranslationFailed, "target_language", target))
		return
	}
	c.state.TranslatedText = translated
	synthEvt := c.synthesizeLocked(translated, target, audio.OriginTranslation)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.metrics.translation("ok")
	c.logger.Info("translation completed", slog.String("target_language", target), slog.Duration("elapsed", elapsed))
	c.publish(snap, c.event(EventTranslationDone, "target_language", target), synthEvt)
}

// synthesizeLocked clears the current audio handle and starts a background
// synthesis of text in language.
func (c *Controller) synthesizeLocked(text, language string, origin audio.Origin) eventstore.Event {
	c.clearAudioLocked()
	c.synthSeq++
	seq := c.synthSeq
	voice := c.voices.For(language)
	c.wg.Add(1)
	go c.synthesize(seq, text, language, voice, origin)
	return c.event(EventSynthesisStarted, "language", language, "voice", voice, "origin", string(origin))
}

func (c *Controller) synthesize(seq uint64, text, language, voice string, origin audio.Origin) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.synthesizeTimeout)
	defer cancel()
	started := time.Now()
	clip, err := c.synth.Synthesize(ctx, text, voice)
	elapsed := time.Since(started)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cfg.DiscardStaleResults && seq != c.synthSeq {
		c.mu.Unlock()
		c.metrics.synthesis("stale")
		c.logger.Debug("discarding superseded synthesis", slog.Uint64("seq", seq))
		c.record(c.event(EventResultDiscarded, "kind", "synthesis", "seq", strconv.FormatUint(seq, 10)))
		return
	}
	if err != nil {
		c.clearAudioLocked()
		snap := c.commitLocked()
		c.mu.Unlock()
		c.metrics.synthesis("error")
		c.logger.Warn("synthesis failed", slogError(err), slog.String("voice", voice), slog.Duration("elapsed", elapsed))
		c.publish(snap, c.event(EventSynthesisFailed, "language", language, "origin", string(origin)))
		return
	}
	c.clearAudioLocked()
	handle := c.audio.Put(clip.Data, clip.ContentType, origin, language)
	c.state.Audio = &handle
	snap := c.commitLocked()
	c.mu.Unlock()

	c.metrics.synthesis("ok")
	c.logger.Info("synthesis completed", slog.String("voice", voice), slog.Int("bytes", handle.Size), slog.Duration("elapsed", elapsed))
	c.publish(snap, c.event(EventSynthesisDone, "language", language, "origin", string(origin), "audio_id", handle.ID))
}

func (c *Controller) clearAudioLocked() {
	if c.state.Audio == nil {
		return
	}
	c.audio.Release(c.state.Audio.ID)
	c.state.Audio = nil
}

func (c *Controller) commitLocked() State {
	c.state.Version++
	c.state.CaptureAvailable = c.capture.Available()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return c.state
}

func (c *Controller) publish(snap State, events ...eventstore.Event) {
	for _, evt := range events {
		c.record(evt)
	}
	c.listenerMu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenerMu.Unlock()
	for _, l := range listeners {
		l(snap)
	}
}

// event builds a timeline entry from alternating key/value pairs.
func (c *Controller) event(kind string, kv ...string) eventstore.Event {
	evt := eventstore.Event{SessionID: c.sessionID, Type: kind}
	if len(kv) > 1 {
		evt.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			evt.Details[kv[i]] = kv[i+1]
		}
	}
	return evt
}

func (c *Controller) record(evt eventstore.Event) {
	if c.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.events.AppendEvent(ctx, evt); err != nil {
		c.logger.Warn("failed to record session event", slog.String("type", evt.Type), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
