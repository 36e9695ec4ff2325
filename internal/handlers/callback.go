package handlers

import (
	"context"
	"strings"

	"github.com/groupkeeper-tgbot-go/internal/i18n"
	"github.com/groupkeeper-tgbot-go/internal/models"
)

// handleCallback processes inline keyboard presses
func (d *Dispatcher) handleCallback(ctx context.Context, r *request) (models.Response, error) {
	data := r.ev.Callback
	r.log = r.log.WithField("callback", data)

	switch {
	case strings.HasPrefix(data, callbackStyle):
		return d.handleStyleCallback(ctx, r, strings.TrimPrefix(data, callbackStyle))
	case data == callbackLeaderboard:
		return d.handleLeaderboard(ctx, r)
	case data == callbackDaily:
		return d.handleDaily(ctx, r)
	case strings.HasPrefix(data, callbackFeature):
		return d.handleFeatureCallback(ctx, r, strings.TrimPrefix(data, callbackFeature))
	default:
		r.log.Debug("Unknown callback")
		return models.Response{}, nil
	}
}

func (d *Dispatcher) handleStyleCallback(ctx context.Context, r *request, style string) (models.Response, error) {
	if _, err := d.progression.SetCardStyle(ctx, r.ev.ChatID, r.ev.UserID, models.RankCardStyle(style)); err != nil {
		return models.Response{}, err
	}
	card, err := d.rankCard(ctx, r.ev.ChatID, r.ev.UserID, displayName(r.ev.DisplayName, r.ev.Username))
	if err != nil {
		return models.Response{}, err
	}
	resp := models.Response{
		AnswerCallback: d.t(r, i18n.MsgStyleSet, map[string]interface{}{"Style": style}),
	}
	resp.Messages = append(resp.Messages, models.OutgoingMessage{
		Text:     card,
		HTML:     true,
		Keyboard: d.rankKeyboard(r),
		Edit:     true,
	})
	return resp, nil
}

func (d *Dispatcher) handleFeatureCallback(ctx context.Context, r *request, feature string) (models.Response, error) {
	if !r.ev.IsPrivileged {
		return models.Response{AnswerCallback: d.t(r, i18n.MsgAdminsOnly, nil)}, nil
	}
	state, err := d.custom.ToggleFeature(ctx, r.ev.ChatID, feature)
	if err != nil {
		return models.Response{}, err
	}
	text, keyboard, err := d.featuresMenu(ctx, r)
	if err != nil {
		return models.Response{}, err
	}
	resp := models.Response{
		AnswerCallback: d.t(r, i18n.MsgFeatureSet, map[string]interface{}{
			"Feature": feature,
			"State":   d.stateLabel(r, state),
		}),
	}
	resp.Messages = append(resp.Messages, models.OutgoingMessage{
		Text:     text,
		HTML:     true,
		Keyboard: keyboard,
		Edit:     true,
	})
	return resp, nil
}
