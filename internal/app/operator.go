package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdx-scalper-bot/internal/alerts"
	"pdx-scalper-bot/internal/schedule"
)

const operatorOffsetKey = "telegram:operator:last_update_id"

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

type operatorAuditEvent struct {
	UpdateID     int64     `json:"update_id"`
	Time         time.Time `json:"time"`
	Action       string    `json:"action"`
	Command      string    `json:"command"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	ChatID       int64     `json:"chat_id"`
	PausedBefore bool      `json:"paused_before"`
	PausedAfter  bool      `json:"paused_after"`
	Slots        string    `json:"slots,omitempty"`
}

func (a *App) startOperator(ctx context.Context) {
	if a.cfg == nil || a.alerts == nil || a.log == nil {
		return
	}
	if !a.cfg.Telegram.OperatorEnabled || !a.alerts.Enabled() {
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUserIDs))
	for _, id := range a.cfg.Telegram.OperatorAllowedUserIDs {
		allowedUsers[id] = struct{}{}
	}
	go a.operatorLoop(ctx, chatID, allowedUsers, pollInterval)
}

func (a *App) operatorLoop(ctx context.Context, chatID int64, allowedUsers map[int64]struct{}, pollInterval time.Duration) {
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, pollInterval)
		if err != nil {
			a.logOperatorError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if a.operatorWarned {
			a.log.Info("telegram operator recovered")
			a.operatorWarned = false
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
				a.saveOperatorOffset(ctx, offset)
			}
			a.handleOperatorUpdate(ctx, upd, chatID, allowedUsers)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, chatID int64, allowedUsers map[int64]struct{}) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.Chat == nil || msg.From == nil {
		return
	}
	if msg.Chat.ID != chatID {
		return
	}
	if len(allowedUsers) > 0 {
		if _, ok := allowedUsers[msg.From.ID]; !ok {
			return
		}
	}
	cmd, args, ok := parseOperatorCommand(msg.Text)
	if !ok {
		return
	}
	meta := operatorMeta{
		UpdateID: upd.UpdateID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		ChatID:   msg.Chat.ID,
		Raw:      msg.Text,
	}
	resp, err := a.handleOperatorCommand(ctx, cmd, args, meta)
	if err != nil {
		resp = fmt.Sprintf("command failed: %v", err)
	}
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil, false
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	return cmd, fields[1:], true
}

func (a *App) handleOperatorCommand(ctx context.Context, cmd string, args []string, meta operatorMeta) (string, error) {
	switch cmd {
	case "status":
		return a.operatorStatus(ctx), nil
	case "pause":
		before := a.engine.Paused()
		a.engine.Pause()
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "pause",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  true,
		})
		if before {
			return "trading already paused", nil
		}
		return "trading paused", nil
	case "resume":
		before := a.engine.Paused()
		a.engine.Resume()
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "resume",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  false,
		})
		if !before {
			return "trading already active", nil
		}
		return "trading resumed", nil
	case "stop":
		a.RequestStop()
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID: meta.UpdateID,
			Time:     time.Now().UTC(),
			Action:   "stop",
			Command:  meta.Raw,
			UserID:   meta.UserID,
			Username: meta.Username,
			ChatID:   meta.ChatID,
		})
		return "stopping after current iteration", nil
	case "schedule":
		return a.handleScheduleCommand(ctx, args, meta)
	case "help":
		return operatorHelpText(), nil
	default:
		return operatorHelpText(), nil
	}
}

func (a *App) handleScheduleCommand(ctx context.Context, args []string, meta operatorMeta) (string, error) {
	if len(args) == 0 || strings.EqualFold(args[0], "show") {
		slots, err := a.schedule.Slots(ctx)
		if err != nil {
			return "", err
		}
		return "schedule: " + schedule.FormatSlots(slots), nil
	}
	switch strings.ToLower(args[0]) {
	case "set":
		if len(args) < 2 {
			return "", fmt.Errorf("schedule set requires hours, e.g. /schedule set 9,10,14")
		}
		hours, err := schedule.ParseSlots(strings.Join(args[1:], ","))
		if err != nil {
			return "", err
		}
		if err := a.schedule.SetSlots(ctx, hours); err != nil {
			return "", err
		}
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID: meta.UpdateID,
			Time:     time.Now().UTC(),
			Action:   "schedule_set",
			Command:  meta.Raw,
			UserID:   meta.UserID,
			Username: meta.Username,
			ChatID:   meta.ChatID,
			Slots:    schedule.FormatSlots(hours),
		})
		return "schedule updated: " + schedule.FormatSlots(hours), nil
	case "clear":
		if err := a.schedule.SetSlots(ctx, nil); err != nil {
			return "", err
		}
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID: meta.UpdateID,
			Time:     time.Now().UTC(),
			Action:   "schedule_clear",
			Command:  meta.Raw,
			UserID:   meta.UserID,
			Username: meta.Username,
			ChatID:   meta.ChatID,
		})
		return "schedule cleared: always-on", nil
	default:
		return "", fmt.Errorf("unknown schedule command: use /schedule show|set|clear")
	}
}

func (a *App) operatorStatus(ctx context.Context) string {
	if a.cfg == nil {
		return "status unavailable"
	}
	status := a.engine.Status()
	summary := a.tracker.Summary()
	slots, err := a.schedule.Slots(ctx)
	scheduleLine := schedule.FormatSlots(slots)
	if err != nil {
		scheduleLine = fmt.Sprintf("unavailable: %v", err)
	}
	lines := []string{
		fmt.Sprintf("state: %s", status.State),
		fmt.Sprintf("paused: %t", status.Paused),
		fmt.Sprintf("cycles: %d/%d", status.CyclesCompleted, status.MaxCycles),
		fmt.Sprintf("skips: %d", status.Skips),
		fmt.Sprintf("quote_failures: %d", status.QuoteFailures),
		fmt.Sprintf("last_spread: %.6f%%", status.LastSpreadPercent),
		fmt.Sprintf("balance: %.4f USDC (pnl %.4f)", summary.CurrentBalance, summary.PnL),
		fmt.Sprintf("volume: %.2f USD, wear %.4f/10k", summary.Volume, summary.WearPer10K),
		fmt.Sprintf("schedule: %s", scheduleLine),
	}
	for name, usage := range a.limiter.Usage() {
		lines = append(lines, fmt.Sprintf("budget_%s: %d/%d", name, usage[0], usage[1]))
	}
	return strings.Join(lines, "\n")
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - current bot status",
		"/pause - pause trading",
		"/resume - resume trading",
		"/stop - stop the bot",
		"/schedule show - show trading hours",
		"/schedule set 9,10,14 - trade only in the given UTC hours",
		"/schedule clear - trade around the clock",
	}, "\n")
}

func (a *App) logOperatorError(err error) {
	if a.log == nil {
		return
	}
	if a.operatorWarned {
		return
	}
	a.operatorWarned = true
	a.log.Warn("telegram operator failed", zap.Error(err))
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	if a.store == nil {
		return 0
	}
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil || !ok {
		return 0
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if a.store == nil {
		return
	}
	_ = a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10))
}

func (a *App) auditOperatorEvent(ctx context.Context, event operatorAuditEvent) {
	if a.store == nil {
		return
	}
	key := fmt.Sprintf("ops:audit:%d:%d", time.Now().UTC().UnixNano(), event.UpdateID)
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = a.store.Set(ctx, key, string(payload))
}
