// Package telegram adapts the transport.Channel boundary onto a Telegram bot
// (telebot long polling). Contact addresses are numeric chat IDs.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"soatbot/internal/transport"
	logx "soatbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	ready   atomic.Bool
	done    chan struct{} // closed when the poll loop exits

	handler atomic.Value // stores transport.CommandHandler
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilHandler transport.CommandHandler
	a.handler.Store(nilHandler)
	a.registerHandlers()
	return a, nil
}

// OnCommand installs the inbound command handler. Safe to call before Start.
func (a *Adapter) OnCommand(h transport.CommandHandler) {
	a.handler.Store(h)
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		name, args, ok := splitCommand(m.Text)
		if !ok {
			return nil
		}
		v := a.handler.Load()
		h, _ := v.(transport.CommandHandler)
		if h == nil {
			return nil
		}
		cmd := transport.Command{
			Name:   name,
			Args:   args,
			FromID: m.Sender.ID,
			ChatID: m.Chat.ID,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if reply := h(ctx, cmd); reply != "" {
			return c.Send(reply)
		}
		return nil
	})
}

func splitCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ = strings.Cut(text[1:], " ")
	// strip bot mention suffix ("/run@soatbot")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.done = make(chan struct{})
	done := a.done
	a.runMu.Unlock()

	// Stop telebot when the run context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			a.bot.Stop()
		case <-done:
		}
	}()

	// telebot's Start() blocks until Stop() is called.
	go func() {
		defer close(done)
		a.ready.Store(true)
		a.log.Info("polling started")
		a.bot.Start()
		a.ready.Store(false)
		a.log.Info("polling stopped")
	}()

	return nil
}

// Ready reports whether the session can accept sends right now.
func (a *Adapter) Ready() bool { return a.ready.Load() }

func (a *Adapter) SendText(ctx context.Context, address, text string) error {
	if !a.Ready() {
		return errors.New("telegram: not connected")
	}
	digits := transport.NormalizeAddress(address)
	if digits == "" {
		return errors.New("telegram: empty address")
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return errors.New("telegram: invalid address " + address)
	}
	_ = ctx // telebot owns the request timeout
	_, err = a.bot.Send(tele.ChatID(id), text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	done := a.done
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	a.ready.Store(false)

	// telebot Stop is expected to be fast; run it async just in case.
	go a.bot.Stop()

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		a.log.Warn("telegram stop timed out")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
