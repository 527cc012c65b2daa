package app

import (
	"context"
	"fmt"
	"strings"

	"soatbot/internal/reminder"
	"soatbot/internal/transport"
	logx "soatbot/pkg/logx"
)

const helpText = `Commands:
/run - deliver due reminders now
/reconcile - recompute missing reminders for the whole fleet
/send <address> <text> - send an ad-hoc message
/status - channel and queue snapshot`

// handleCommand serves operator commands arriving over the channel itself.
// Only configured owner user IDs are honored; everyone else is ignored.
func (a *App) handleCommand(ctx context.Context, cmd transport.Command) string {
	if !a.isOwner(cmd.FromID) {
		a.log.Debug("command from non-owner ignored",
			logx.String("cmd", cmd.Name),
			logx.Int64("from", cmd.FromID))
		return ""
	}

	switch cmd.Name {
	case "run":
		res, err := a.rem.RunDueBatch(ctx)
		if err != nil {
			return "batch failed: " + err.Error()
		}
		if res.Status == reminder.BatchSkipped {
			return "batch skipped: channel not ready"
		}
		return fmt.Sprintf("batch done: %d sent, %d failed", res.Sent, res.Failed)

	case "reconcile":
		n, err := a.rem.ReconcileFleet(ctx)
		if err != nil {
			return "reconcile failed: " + err.Error()
		}
		return fmt.Sprintf("reconcile done: %d reminders created", n)

	case "send":
		addr, text, _ := strings.Cut(cmd.Args, " ")
		if addr == "" || strings.TrimSpace(text) == "" {
			return "usage: /send <address> <text>"
		}
		if err := a.rem.SendTo(ctx, addr, strings.TrimSpace(text)); err != nil {
			return "send failed: " + err.Error()
		}
		return "sent"

	case "status":
		pending, err := a.rem.PendingCount(ctx)
		if err != nil {
			return "status failed: " + err.Error()
		}
		ready := "not ready"
		if a.channel.Ready() {
			ready = "ready"
		}
		return fmt.Sprintf("channel: %s\npending reminders: %d", ready, pending)

	case "help", "start":
		return helpText

	default:
		return ""
	}
}

func (a *App) isOwner(id int64) bool {
	a.ownerMu.Lock()
	defer a.ownerMu.Unlock()
	for _, o := range a.owners {
		if o == id {
			return true
		}
	}
	return false
}
