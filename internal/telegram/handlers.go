package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

const defaultFrequency = "1"

// ensureDefaults seeds any unset settings so a fresh profile has a persona,
// timezone and frequency before the first resync.
func (r *Router) ensureDefaults(ctx context.Context, userID int64) error {
	defaults := []struct {
		key   store.SettingKey
		value string
	}{
		{store.SettingPersona, domain.DefaultPersona},
		{store.SettingTimezone, r.defaultTZ},
		{store.SettingFrequency, defaultFrequency},
	}
	for _, d := range defaults {
		_, ok, err := r.repo.GetSetting(ctx, userID, d.key)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := r.repo.SetSetting(ctx, userID, d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

// setting reads a stored setting, applying the command-layer default when the
// value was never written.
func (r *Router) setting(ctx context.Context, userID int64, key store.SettingKey) string {
	v, ok, err := r.repo.GetSetting(ctx, userID, key)
	if err != nil {
		r.log.Error("read setting failed",
			zap.Int64("userID", userID), zap.String("key", string(key)), zap.Error(err))
	}
	if ok {
		return v
	}
	switch key {
	case store.SettingPersona:
		return domain.DefaultPersona
	case store.SettingTimezone:
		return r.defaultTZ
	default:
		return defaultFrequency
	}
}

// --- Commands ---

func (r *Router) handleStart(ctx context.Context, userID int64) {
	if err := r.ensureDefaults(ctx, userID); err != nil {
		r.log.Error("seed defaults failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Profile initialization error. Please try again later.")
		return
	}
	if err := r.register.Resync(ctx, userID); err != nil {
		r.log.Warn("resync on /start failed", zap.Int64("userID", userID), zap.Error(err))
	}
	persona := domain.LookupPersona(r.setting(ctx, userID, store.SettingPersona))
	r.sendText(userID, fmt.Sprintf(startFmt, persona.Name))
}

func (r *Router) handlePersonas(userID int64) {
	var b strings.Builder
	b.WriteString("Available personas:\n")
	for _, id := range domain.PersonaIDs() {
		fmt.Fprintf(&b, "- %s: %s\n", id, domain.LookupPersona(id).Name)
	}
	r.sendText(userID, b.String())
}

func (r *Router) handleSetPersona(ctx context.Context, userID int64, args []string) {
	if len(args) != 1 || !domain.ValidPersona(strings.ToLower(args[0])) {
		r.sendText(userID, "Usage: /set_persona <name>\nChoose from: "+strings.Join(domain.PersonaIDs(), ", "))
		return
	}
	id := strings.ToLower(args[0])
	if err := r.repo.SetSetting(ctx, userID, store.SettingPersona, id); err != nil {
		r.log.Error("save persona failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not save persona.")
		return
	}
	r.log.Info("persona switched", zap.Int64("userID", userID), zap.String("persona", id))
	r.sendText(userID, "Persona switched to: "+domain.LookupPersona(id).Name)
}

func (r *Router) handleSetFrequency(ctx context.Context, userID int64, args []string) {
	if len(args) != 1 {
		r.sendText(userID, fmt.Sprintf(invalidFrequencyFmt, frequencyChoices()))
		return
	}
	freq, err := domain.ParseFrequency(args[0])
	if err != nil {
		r.sendText(userID, fmt.Sprintf(invalidFrequencyFmt, frequencyChoices()))
		return
	}
	if err := r.repo.SetSetting(ctx, userID, store.SettingFrequency, formatFloat(freq)); err != nil {
		r.log.Error("save frequency failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not save frequency.")
		return
	}
	if err := r.register.Resync(ctx, userID); err != nil {
		r.sendText(userID, scheduleDisabledText)
		return
	}
	r.log.Info("frequency updated", zap.Int64("userID", userID), zap.Float64("hours", freq))
	r.sendText(userID, "Check-in schedule updated: "+domain.FormatFrequency(freq))
}

func (r *Router) handleSetTimezone(ctx context.Context, userID int64, args []string) {
	if len(args) != 1 {
		r.sendText(userID, invalidTimezoneText)
		return
	}
	tz, err := domain.ValidateTZ(args[0])
	if err != nil {
		r.sendText(userID, invalidTimezoneText)
		return
	}
	if err := r.repo.SetSetting(ctx, userID, store.SettingTimezone, tz); err != nil {
		r.log.Error("save timezone failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not save timezone.")
		return
	}
	if err := r.register.Resync(ctx, userID); err != nil {
		r.sendText(userID, scheduleDisabledText)
		return
	}
	r.log.Info("timezone updated", zap.Int64("userID", userID), zap.String("tz", tz))
	r.sendText(userID, "Timezone updated: "+tz)
}

func (r *Router) handleStatus(ctx context.Context, userID int64) {
	personaID := r.setting(ctx, userID, store.SettingPersona)
	tz := r.setting(ctx, userID, store.SettingTimezone)
	freqStr := r.setting(ctx, userID, store.SettingFrequency)

	freqText := freqStr + "h"
	if f, err := domain.ParseFrequency(freqStr); err == nil {
		freqText = domain.FormatFrequency(f)
	}

	next := "—"
	if jobs, err := r.repo.JobsForUser(ctx, userID); err == nil && len(jobs) == 1 && jobs[0].NextFireAt != nil {
		if loc, lerr := time.LoadLocation(tz); lerr == nil {
			next = jobs[0].NextFireAt.In(loc).Format("Mon 15:04")
		}
	}

	r.sendText(userID, fmt.Sprintf(statusFmt,
		domain.LookupPersona(personaID).Name, freqText, tz, next))
}

func (r *Router) handleClearMemory(ctx context.Context, userID int64) {
	if err := r.repo.ClearTurns(ctx, userID); err != nil {
		r.log.Error("clear memory failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not clear memory.")
		return
	}
	r.log.Info("memory cleared", zap.Int64("userID", userID))
	r.sendText(userID, memoryClearedText)
}

func (r *Router) handleExportMemory(ctx context.Context, userID int64) {
	turns, err := r.repo.LastTurns(ctx, userID, domain.HistoryCap)
	if err != nil {
		r.log.Error("read history failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not export memory.")
		return
	}
	data, err := domain.ExportCSV(turns)
	if err != nil {
		r.log.Error("render csv failed", zap.Int64("userID", userID), zap.Error(err))
		r.sendText(userID, "Could not export memory.")
		return
	}
	if data == nil {
		r.sendText(userID, noHistoryText)
		return
	}
	r.sendDocument(userID, data, exportFilename, exportCaption)
}

// --- Plain messages ---

func (r *Router) handleMessage(ctx context.Context, userID int64, text string) {
	if err := r.repo.AppendTurn(ctx, userID, domain.RoleUser, text); err != nil {
		r.log.Error("store user turn failed", zap.Int64("userID", userID), zap.Error(err))
	}

	response := r.composer.Reply(ctx, userID, text)
	r.sendText(userID, response)

	if err := r.repo.AppendTurn(ctx, userID, domain.RoleBot, response); err != nil {
		r.log.Error("store bot turn failed", zap.Int64("userID", userID), zap.Error(err))
	}
}

// --- helpers ---

func frequencyChoices() string {
	parts := make([]string, len(domain.Frequencies))
	for i, f := range domain.Frequencies {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, ", ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
