package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loqalabs/loqa-translate/internal/bus"
	"github.com/loqalabs/loqa-translate/internal/protocol"
	"github.com/loqalabs/loqa-translate/internal/session"
	"github.com/nats-io/nats.go"
)

var errUnknownCommand = errors.New("unknown session command")

// Session is the part of the session controller the bus can drive.
type Session interface {
	State() session.State
	Subscribe(l session.Listener) func()
	SetLanguage(role session.Role, code string) error
	SetInputText(text string)
	Translate() error
	StartCapture() error
	StopCapture() error
	SpeakOriginal() error
	TogglePlayback() bool
}

// Service bridges the session controller and the bus: commands arrive on
// session.command and every state change is published on session.state.
type Service struct {
	bus    *bus.Client
	sess   Session
	logger *slog.Logger

	mu          sync.Mutex
	subCommands *nats.Subscription
	unsubscribe func()
}

func NewService(busClient *bus.Client, sess Session, logger *slog.Logger) *Service {
	return &Service{
		bus:    busClient,
		sess:   sess,
		logger: logger.With(slog.String("component", "router")),
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSessionCommand, s.handleCommand)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.SubjectSessionCommand, err)
	}
	s.subCommands = sub
	s.unsubscribe = s.sess.Subscribe(s.publishState)
	return nil
}

func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.subCommands != nil {
		_ = s.subCommands.Drain()
		s.subCommands = nil
	}
}

func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subCommands != nil && s.bus.Healthy()
}

func (s *Service) handleCommand(msg *nats.Msg) {
	var cmd protocol.SessionCommand
	err := json.Unmarshal(msg.Data, &cmd)
	if err != nil {
		s.logger.Warn("router failed to decode session command", slogError(err))
	} else {
		err = s.apply(cmd)
		if err != nil {
			s.logger.Info("session command rejected", slog.String("op", cmd.Op), slogError(err))
		}
	}
	if msg.Reply == "" {
		return
	}
	reply := protocol.SessionCommandReply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	}
	if state, mErr := json.Marshal(s.sess.State()); mErr == nil {
		reply.State = state
	}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		s.logger.Warn("router failed to marshal reply", slogError(mErr))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("router failed to reply", slogError(err))
	}
}

func (s *Service) apply(cmd protocol.SessionCommand) error {
	switch cmd.Op {
	case protocol.CommandGetState:
		return nil
	case protocol.CommandSetLanguage:
		return s.sess.SetLanguage(session.Role(cmd.Role), cmd.Code)
	case protocol.CommandSetInput:
		s.sess.SetInputText(cmd.Text)
		return nil
	case protocol.CommandTranslate:
		return s.sess.Translate()
	case protocol.CommandStartCapture:
		return s.sess.StartCapture()
	case protocol.CommandStopCapture:
		return s.sess.StopCapture()
	case protocol.CommandSpeakOriginal:
		return s.sess.SpeakOriginal()
	case protocol.CommandTogglePlayback:
		s.sess.TogglePlayback()
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Op)
	}
}

func (s *Service) publishState(state session.State) {
	if err := s.bus.PublishJSON(protocol.SubjectSessionState, state); err != nil {
		s.logger.Warn("router failed to publish session state", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
