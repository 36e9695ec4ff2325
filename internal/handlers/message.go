package handlers

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/i18n"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/moderation"
	"github.com/groupkeeper-tgbot-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

const autoWarnReason = "banned word"

// handleMessage runs the plain message pipeline: keyword filter, flood
// control, XP and custom responses, in that order.
func (d *Dispatcher) handleMessage(ctx context.Context, r *request) (models.Response, error) {
	var resp models.Response
	ev := r.ev
	if strings.TrimSpace(ev.Text) == "" {
		return resp, nil
	}

	cs, err := d.custom.Settings(ctx, ev.ChatID)
	if err != nil {
		return resp, err
	}
	opts := cs.Settings

	if !ev.IsPrivileged {
		if cs.FeatureOn(models.FeatureKeywordFilter) {
			if word, hit := moderation.ScanBannedWords(ev.Text, cs.BannedWords); hit {
				r.log.WithField("word", word).Info("Banned word detected")
				resp.Effects = append(resp.Effects, models.SideEffect{
					Kind:      models.EffectDeleteMessage,
					UserID:    ev.UserID,
					MessageID: ev.MessageID,
				})
				resp.ReplyHTML(d.t(r, i18n.MsgBannedWordDetected, map[string]interface{}{"Name": r.name()}), nil)
				if err := d.issueWarning(ctx, r, &resp, cs, ev.UserID, r.name(), autoWarnReason, 0); err != nil {
					return resp, err
				}
				return resp, nil
			}
		}

		if cs.FeatureOn(models.FeatureFloodControl) && d.flood != nil {
			window := time.Duration(opts.FloodWindow) * time.Second
			if !d.flood.Allow(ev.ChatID, ev.UserID, opts.FloodLimit, window) {
				r.log.Info("Flood limit exceeded, deleting message")
				resp.Effects = append(resp.Effects, models.SideEffect{
					Kind:      models.EffectDeleteMessage,
					UserID:    ev.UserID,
					MessageID: ev.MessageID,
				})
				return resp, nil
			}
		}
	}

	if cs.FeatureOn(models.FeatureRankSystem) {
		award, err := d.progression.AwardMessageXP(ctx, ev.ChatID, ev.UserID, opts.XPPerMessage)
		if err != nil {
			return resp, err
		}
		if award.LeveledUp() {
			resp.ReplyHTML(d.t(r, i18n.MsgLevelUp, map[string]interface{}{
				"Name":  r.name(),
				"Level": award.Rank.Level,
			}), nil)
		}
	}

	if answer, ok, err := d.custom.MatchCustomResponse(ctx, ev.ChatID, ev.Text); err != nil {
		return resp, err
	} else if ok {
		resp.Reply(answer)
	}
	return resp, nil
}

// issueWarning stores a warning for userID and, with auto_mute on, mutes
// the user once the chat's warning limit is reached.
func (d *Dispatcher) issueWarning(ctx context.Context, r *request, resp *models.Response, cs *models.ChatSettings, userID int64, name, reason string, issuer int64) error {
	_, count, err := d.moderation.RecordWarning(ctx, r.ev.ChatID, userID, reason, issuer)
	if err != nil {
		return err
	}
	maxWarnings := cs.Settings.MaxWarnings
	resp.ReplyHTML(d.t(r, i18n.MsgWarned, map[string]interface{}{
		"Name":   name,
		"Count":  count,
		"Max":    maxWarnings,
		"Reason": html.EscapeString(reason),
	}), nil)

	if cs.FeatureOn(models.FeatureAutoMute) && moderation.ThresholdReached(count, maxWarnings) {
		minutes := cs.Settings.MuteDuration
		resp.Effects = append(resp.Effects, models.SideEffect{
			Kind:     models.EffectMute,
			UserID:   userID,
			Duration: time.Duration(minutes) * time.Minute,
		})
		resp.ReplyHTML(d.t(r, i18n.MsgMuted, map[string]interface{}{
			"Name":    name,
			"Max":     maxWarnings,
			"Minutes": minutes,
		}), nil)
		r.log.WithFields(logrus.Fields{
			"target_id": userID,
			"warnings":  count,
		}).Info("Warning limit reached, muting user")
	}
	return nil
}

func (d *Dispatcher) handleMemberJoined(ctx context.Context, r *request) (models.Response, error) {
	return d.greet(ctx, r, true)
}

func (d *Dispatcher) handleMemberLeft(ctx context.Context, r *request) (models.Response, error) {
	return d.greet(ctx, r, false)
}

func (d *Dispatcher) greet(ctx context.Context, r *request, joined bool) (models.Response, error) {
	var resp models.Response
	cs, err := d.custom.Settings(ctx, r.ev.ChatID)
	if err != nil {
		return resp, err
	}
	if !cs.FeatureOn(models.FeatureWelcomeMessage) {
		return resp, nil
	}
	template := cs.Settings.GoodbyeMessage
	if joined {
		if !cs.FeatureOn(models.FeatureGreetUsers) {
			return resp, nil
		}
		template = cs.Settings.WelcomeMessage
	}
	if strings.TrimSpace(template) == "" {
		return resp, nil
	}
	member := markdown.Member{
		UserID:      r.ev.UserID,
		DisplayName: displayName(r.ev.DisplayName, r.ev.Username),
		Username:    r.ev.Username,
	}
	resp.ReplyHTML(markdown.RenderGreeting(template, member, cs.ChatTitle), nil)
	return resp, nil
}
