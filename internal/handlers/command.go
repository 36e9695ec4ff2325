package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/i18n"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/customization"
	"github.com/groupkeeper-tgbot-go/internal/services/rankcard"
	"github.com/groupkeeper-tgbot-go/pkg/markdown"
)

const (
	leaderboardSize = 10
	warningsShown   = 10
	defaultReason   = "no reason given"
)

// Callback data prefixes understood by handleCallback.
const (
	callbackStyle       = "rank:style:"
	callbackLeaderboard = "rank:leaderboard"
	callbackDaily       = "rank:daily"
	callbackFeature     = "feature:toggle:"
)

// builtinCommands maps every built-in command to whether it is admin only.
var builtinCommands = map[string]bool{
	"start":         false,
	"help":          false,
	"rank":          false,
	"leaderboard":   false,
	"top":           false,
	"daily":         false,
	"rankstyle":     false,
	"warnings":      false,
	"rules":         false,
	"commands":      false,
	"language":      false,
	"warn":          true,
	"clearwarnings": true,
	"ban_word":      true,
	"unban_word":    true,
	"banned_words":  true,
	"toggle":        true,
	"features":      true,
	"set":           true,
	"settings":      true,
	"set_welcome":   true,
	"set_goodbye":   true,
	"set_rules":     true,
	"add_response":  true,
	"del_response":  true,
	"add_command":   true,
	"del_command":   true,
}

// handleCommand processes slash commands
func (d *Dispatcher) handleCommand(ctx context.Context, r *request) (models.Response, error) {
	command := customization.NormalizeCommandName(r.ev.Command)
	r.log = r.log.WithField("command", command)

	adminOnly, builtin := builtinCommands[command]
	if !builtin {
		return d.handleCustomCommand(ctx, r, command)
	}
	d.recorder.RecordCommandExecuted(command)
	if adminOnly && !r.ev.IsPrivileged {
		var resp models.Response
		resp.Reply(d.t(r, i18n.MsgAdminsOnly, nil))
		return resp, nil
	}

	switch command {
	case "start":
		return d.handleStart(r)
	case "help":
		return d.handleHelp(r)
	case "rank":
		return d.handleRank(ctx, r)
	case "leaderboard", "top":
		return d.handleLeaderboard(ctx, r)
	case "daily":
		return d.handleDaily(ctx, r)
	case "rankstyle":
		return d.handleRankStyle(ctx, r)
	case "warn":
		return d.handleWarn(ctx, r)
	case "warnings":
		return d.handleWarnings(ctx, r)
	case "clearwarnings":
		return d.handleClearWarnings(ctx, r)
	case "ban_word":
		return d.handleBanWord(ctx, r)
	case "unban_word":
		return d.handleUnbanWord(ctx, r)
	case "banned_words":
		return d.handleBannedWords(ctx, r)
	case "toggle":
		return d.handleToggle(ctx, r)
	case "features":
		return d.handleFeatures(ctx, r)
	case "set":
		return d.handleSet(ctx, r)
	case "settings":
		return d.handleSettings(ctx, r)
	case "set_welcome":
		return d.handleSetText(ctx, r, "/set_welcome <text>", d.custom.SetWelcomeMessage, i18n.MsgWelcomeSet)
	case "set_goodbye":
		return d.handleSetText(ctx, r, "/set_goodbye <text>", d.custom.SetGoodbyeMessage, i18n.MsgGoodbyeSet)
	case "set_rules":
		return d.handleSetText(ctx, r, "/set_rules <text>", d.custom.SetRules, i18n.MsgRulesSet)
	case "rules":
		return d.handleRules(ctx, r)
	case "add_response":
		return d.handleAddResponse(ctx, r)
	case "del_response":
		return d.handleDelResponse(ctx, r)
	case "add_command":
		return d.handleAddCommand(ctx, r)
	case "del_command":
		return d.handleDelCommand(ctx, r)
	case "commands":
		return d.handleCommands(ctx, r)
	case "language":
		return d.handleLanguage(ctx, r)
	}
	return models.Response{}, nil
}

func (d *Dispatcher) usage(r *request, usage string) models.Response {
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgUsage, map[string]interface{}{"Usage": usage}))
	return resp
}

func (d *Dispatcher) disabledReply(r *request) models.Response {
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgFeatureDisabled, nil))
	return resp
}

func (d *Dispatcher) handleStart(r *request) (models.Response, error) {
	var resp models.Response
	resp.ReplyHTML(d.t(r, i18n.MsgStart, map[string]interface{}{"Name": r.name()}), nil)
	return resp, nil
}

func (d *Dispatcher) handleHelp(r *request) (models.Response, error) {
	var resp models.Response
	resp.ReplyHTML(d.t(r, i18n.MsgHelp, nil), nil)
	return resp, nil
}

// target returns the replied-to user, or the sender when there is no reply.
func target(ev models.Event) (int64, string, bool) {
	if ev.ReplyToUserID != 0 {
		return ev.ReplyToUserID, ev.ReplyToDisplayName, true
	}
	return ev.UserID, displayName(ev.DisplayName, ev.Username), false
}

// userInfo resolves the stored name of a user, falling back to fallback.
func (d *Dispatcher) userInfo(ctx context.Context, userID int64, fallback string) (rankcard.UserInfo, error) {
	us, err := d.custom.User(ctx, userID)
	if err != nil {
		return rankcard.UserInfo{}, err
	}
	name := us.DisplayName
	if name == "" {
		name = fallback
	}
	if name == "" {
		name = displayName("", us.Username)
	}
	return rankcard.UserInfo{DisplayName: name, Username: us.Username}, nil
}

func (d *Dispatcher) rankKeyboard(r *request) [][]models.Button {
	return [][]models.Button{{
		{Text: d.t(r, i18n.MsgButtonLeaderboard, nil), Data: callbackLeaderboard},
		{Text: d.t(r, i18n.MsgButtonDaily, nil), Data: callbackDaily},
	}}
}

func styleKeyboard() [][]models.Button {
	var rows [][]models.Button
	var row []models.Button
	for _, style := range models.RankCardStyles {
		row = append(row, models.Button{Text: string(style), Data: callbackStyle + string(style)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// rankCard renders userID's card in their chosen style.
func (d *Dispatcher) rankCard(ctx context.Context, chatID, userID int64, fallbackName string) (string, error) {
	rank, err := d.progression.Rank(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	position, err := d.progression.Position(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	info, err := d.userInfo(ctx, userID, fallbackName)
	if err != nil {
		return "", err
	}
	return rankcard.Render(rank.CardStyle, info, *rank, position), nil
}

func (d *Dispatcher) handleRank(ctx context.Context, r *request) (models.Response, error) {
	on, err := d.custom.FeatureEnabled(ctx, r.ev.ChatID, models.FeatureRankSystem)
	if err != nil {
		return models.Response{}, err
	}
	if !on {
		return d.disabledReply(r), nil
	}
	userID, name, _ := target(r.ev)
	card, err := d.rankCard(ctx, r.ev.ChatID, userID, name)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.ReplyHTML(card, d.rankKeyboard(r))
	return resp, nil
}

func (d *Dispatcher) leaderboardText(ctx context.Context, r *request) (string, error) {
	ranks, err := d.progression.Leaderboard(ctx, r.ev.ChatID, leaderboardSize)
	if err != nil {
		return "", err
	}
	if len(ranks) == 0 {
		return d.t(r, i18n.MsgLeaderboardEmpty, nil), nil
	}
	lines := []string{d.t(r, i18n.MsgLeaderboardTitle, nil)}
	for i, rank := range ranks {
		info, err := d.userInfo(ctx, rank.UserID, "")
		if err != nil {
			return "", err
		}
		lines = append(lines, d.t(r, i18n.MsgLeaderboardRow, map[string]interface{}{
			"Position": i + 1,
			"Name":     html.EscapeString(info.DisplayName),
			"Level":    rank.Level,
			"XP":       rank.XP,
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) handleLeaderboard(ctx context.Context, r *request) (models.Response, error) {
	on, err := d.custom.FeatureEnabled(ctx, r.ev.ChatID, models.FeatureRankSystem)
	if err != nil {
		return models.Response{}, err
	}
	if !on {
		return d.disabledReply(r), nil
	}
	text, err := d.leaderboardText(ctx, r)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.ReplyHTML(text, nil)
	return resp, nil
}

func (d *Dispatcher) handleDaily(ctx context.Context, r *request) (models.Response, error) {
	cs, err := d.custom.Settings(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	if !cs.FeatureOn(models.FeatureDailyRewards) {
		return d.disabledReply(r), nil
	}
	today := models.DateOf(r.ev.Time.UTC())
	res, err := d.progression.ClaimDailyBonus(ctx, r.ev.ChatID, r.ev.UserID, cs.Settings.DailyBonusXP, today)
	if err != nil {
		return models.Response{}, err
	}

	var resp models.Response
	if res.AlreadyClaimed {
		resp.Reply(d.t(r, i18n.MsgDailyAlready, nil))
		return resp, nil
	}
	resp.ReplyHTML(d.t(r, i18n.MsgDailyClaimed, map[string]interface{}{
		"Total":       res.Total,
		"Streak":      res.Award.Rank.DailyStreak,
		"StreakBonus": res.StreakBonus,
	}), nil)
	if res.Award.LeveledUp() {
		resp.ReplyHTML(d.t(r, i18n.MsgLevelUp, map[string]interface{}{
			"Name":  r.name(),
			"Level": res.Award.Rank.Level,
		}), nil)
	}
	return resp, nil
}

func (d *Dispatcher) handleRankStyle(ctx context.Context, r *request) (models.Response, error) {
	var resp models.Response
	if len(r.ev.Args) == 0 {
		resp.ReplyHTML(d.t(r, i18n.MsgStyleChoose, nil), styleKeyboard())
		return resp, nil
	}
	style := models.RankCardStyle(strings.ToLower(r.ev.Args[0]))
	if _, err := d.progression.SetCardStyle(ctx, r.ev.ChatID, r.ev.UserID, style); err != nil {
		return resp, err
	}
	resp.Reply(d.t(r, i18n.MsgStyleSet, map[string]interface{}{"Style": string(style)}))
	return resp, nil
}

// Moderation

func (d *Dispatcher) needReply(r *request) models.Response {
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgNeedReply, nil))
	return resp
}

func (d *Dispatcher) handleWarn(ctx context.Context, r *request) (models.Response, error) {
	userID, name, replied := target(r.ev)
	if !replied {
		return d.needReply(r), nil
	}
	reason := strings.TrimSpace(r.ev.Text)
	if reason == "" {
		reason = defaultReason
	}
	cs, err := d.custom.Settings(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	err = d.issueWarning(ctx, r, &resp, cs, userID, html.EscapeString(name), reason, r.ev.UserID)
	return resp, err
}

func (d *Dispatcher) handleWarnings(ctx context.Context, r *request) (models.Response, error) {
	userID, name, replied := target(r.ev)
	if replied && !r.ev.IsPrivileged {
		var resp models.Response
		resp.Reply(d.t(r, i18n.MsgAdminsOnly, nil))
		return resp, nil
	}
	warnings, err := d.moderation.ListWarnings(ctx, r.ev.ChatID, userID)
	if err != nil {
		return models.Response{}, err
	}

	var resp models.Response
	name = html.EscapeString(name)
	if len(warnings) == 0 {
		resp.ReplyHTML(d.t(r, i18n.MsgWarningsNone, map[string]interface{}{"Name": name}), nil)
		return resp, nil
	}
	lines := []string{d.t(r, i18n.MsgWarningsTitle, map[string]interface{}{
		"Name":  name,
		"Count": len(warnings),
	})}
	for i, w := range warnings {
		if i == warningsShown {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", i+1, html.EscapeString(w.Reason), w.CreatedAt.UTC().Format("2006-01-02")))
	}
	resp.ReplyHTML(strings.Join(lines, "\n"), nil)
	return resp, nil
}

func (d *Dispatcher) handleClearWarnings(ctx context.Context, r *request) (models.Response, error) {
	userID, name, replied := target(r.ev)
	if !replied {
		return d.needReply(r), nil
	}
	n, err := d.moderation.ClearWarnings(ctx, r.ev.ChatID, userID)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.ReplyHTML(d.t(r, i18n.MsgWarningsCleared, map[string]interface{}{
		"Name":  html.EscapeString(name),
		"Count": n,
	}), nil)
	return resp, nil
}

func (d *Dispatcher) handleBanWord(ctx context.Context, r *request) (models.Response, error) {
	word := strings.TrimSpace(r.ev.Text)
	if word == "" {
		return d.usage(r, "/ban_word <word>"), nil
	}
	added, err := d.custom.AddBannedWord(ctx, r.ev.ChatID, word)
	if err != nil {
		return models.Response{}, err
	}
	id := i18n.MsgBannedWordAdded
	if !added {
		id = i18n.MsgBannedWordExists
	}
	var resp models.Response
	resp.Reply(d.t(r, id, map[string]interface{}{"Word": strings.ToLower(word)}))
	return resp, nil
}

func (d *Dispatcher) handleUnbanWord(ctx context.Context, r *request) (models.Response, error) {
	word := strings.TrimSpace(r.ev.Text)
	if word == "" {
		return d.usage(r, "/unban_word <word>"), nil
	}
	removed, err := d.custom.RemoveBannedWord(ctx, r.ev.ChatID, word)
	if err != nil {
		return models.Response{}, err
	}
	id := i18n.MsgBannedWordRemoved
	if !removed {
		id = i18n.MsgBannedWordMissing
	}
	var resp models.Response
	resp.Reply(d.t(r, id, map[string]interface{}{"Word": strings.ToLower(word)}))
	return resp, nil
}

func (d *Dispatcher) handleBannedWords(ctx context.Context, r *request) (models.Response, error) {
	words, err := d.custom.BannedWords(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	if len(words) == 0 {
		resp.Reply(d.t(r, i18n.MsgBannedWordsEmpty, nil))
		return resp, nil
	}
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = "• " + html.EscapeString(w)
	}
	resp.ReplyHTML(d.t(r, i18n.MsgBannedWordsList, map[string]interface{}{
		"Words": strings.Join(escaped, "\n"),
	}), nil)
	return resp, nil
}

// Customization

func (d *Dispatcher) stateLabel(r *request, on bool) string {
	if on {
		return d.t(r, i18n.MsgStateOn, nil)
	}
	return d.t(r, i18n.MsgStateOff, nil)
}

func (d *Dispatcher) handleToggle(ctx context.Context, r *request) (models.Response, error) {
	args := r.ev.Args
	if len(args) == 0 {
		return d.usage(r, "/toggle <feature> [on|off]"), nil
	}
	feature := strings.ToLower(args[0])

	var state bool
	var err error
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "on", "true", "enable", "1":
			state = true
		case "off", "false", "disable", "0":
			state = false
		default:
			return models.Response{}, apperrors.Invalid("state", "use on or off")
		}
		err = d.custom.SetFeature(ctx, r.ev.ChatID, feature, state)
	} else {
		state, err = d.custom.ToggleFeature(ctx, r.ev.ChatID, feature)
	}
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgFeatureSet, map[string]interface{}{
		"Feature": feature,
		"State":   d.stateLabel(r, state),
	}))
	return resp, nil
}

// featuresMenu renders the feature list with one toggle button per feature.
func (d *Dispatcher) featuresMenu(ctx context.Context, r *request) (string, [][]models.Button, error) {
	features, err := d.custom.Features(ctx, r.ev.ChatID)
	if err != nil {
		return "", nil, err
	}
	lines := []string{d.t(r, i18n.MsgFeaturesTitle, nil)}
	keyboard := make([][]models.Button, 0, len(features))
	for _, f := range features {
		mark := "❌"
		if f.Enabled {
			mark = "✅"
		}
		lines = append(lines, fmt.Sprintf("%s %s", mark, f.Name))
		keyboard = append(keyboard, []models.Button{{
			Text: fmt.Sprintf("%s %s", mark, f.Name),
			Data: callbackFeature + f.Name,
		}})
	}
	return strings.Join(lines, "\n"), keyboard, nil
}

func (d *Dispatcher) handleFeatures(ctx context.Context, r *request) (models.Response, error) {
	text, keyboard, err := d.featuresMenu(ctx, r)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.ReplyHTML(text, keyboard)
	return resp, nil
}

func (d *Dispatcher) handleSet(ctx context.Context, r *request) (models.Response, error) {
	option, value := splitFirst(r.ev.Text)
	if option == "" || value == "" {
		return d.usage(r, "/set <option> <value>"), nil
	}
	if err := d.custom.SetOption(ctx, r.ev.ChatID, option, value); err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgOptionSet, map[string]interface{}{"Option": strings.ToLower(option)}))
	return resp, nil
}

func (d *Dispatcher) handleSettings(ctx context.Context, r *request) (models.Response, error) {
	opts, err := d.custom.Options(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	lines := []string{d.t(r, i18n.MsgSettingsTitle, nil)}
	for _, name := range customization.OptionNames() {
		value, _ := customization.OptionValue(opts, name)
		lines = append(lines, fmt.Sprintf("<code>%s</code>: %s", name, html.EscapeString(value)))
	}
	var resp models.Response
	resp.ReplyHTML(strings.Join(lines, "\n"), nil)
	return resp, nil
}

func (d *Dispatcher) handleSetText(
	ctx context.Context,
	r *request,
	usage string,
	set func(context.Context, int64, string) error,
	done string,
) (models.Response, error) {
	text := strings.TrimSpace(r.ev.Text)
	if text == "" {
		return d.usage(r, usage), nil
	}
	if err := set(ctx, r.ev.ChatID, text); err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.Reply(d.t(r, done, nil))
	return resp, nil
}

func (d *Dispatcher) handleRules(ctx context.Context, r *request) (models.Response, error) {
	cs, err := d.custom.Settings(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	member := markdown.Member{
		UserID:      r.ev.UserID,
		DisplayName: displayName(r.ev.DisplayName, r.ev.Username),
		Username:    r.ev.Username,
	}
	var resp models.Response
	resp.ReplyHTML(d.t(r, i18n.MsgRules, map[string]interface{}{
		"Rules": markdown.RenderGreeting(cs.Settings.Rules, member, cs.ChatTitle),
	}), nil)
	return resp, nil
}

func (d *Dispatcher) handleAddResponse(ctx context.Context, r *request) (models.Response, error) {
	trigger, response := splitQuoted(r.ev.Text)
	if trigger == "" || response == "" {
		return d.usage(r, `/add_response "trigger" response`), nil
	}
	if err := d.custom.AddCustomResponse(ctx, r.ev.ChatID, trigger, response); err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgResponseAdded, map[string]interface{}{"Trigger": trigger}))
	return resp, nil
}

func (d *Dispatcher) handleDelResponse(ctx context.Context, r *request) (models.Response, error) {
	trigger := strings.Trim(strings.TrimSpace(r.ev.Text), `"`)
	if trigger == "" {
		return d.usage(r, "/del_response <trigger>"), nil
	}
	removed, err := d.custom.RemoveCustomResponse(ctx, r.ev.ChatID, trigger)
	if err != nil {
		return models.Response{}, err
	}
	id := i18n.MsgResponseRemoved
	if !removed {
		id = i18n.MsgResponseMissing
	}
	var resp models.Response
	resp.Reply(d.t(r, id, map[string]interface{}{"Trigger": trigger}))
	return resp, nil
}

func (d *Dispatcher) handleAddCommand(ctx context.Context, r *request) (models.Response, error) {
	name, response := splitFirst(r.ev.Text)
	if name == "" || response == "" {
		return d.usage(r, "/add_command <name> <response>"), nil
	}
	if err := d.custom.AddCustomCommand(ctx, r.ev.ChatID, name, response, r.ev.UserID); err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgCommandAdded, map[string]interface{}{
		"Command": customization.NormalizeCommandName(name),
	}))
	return resp, nil
}

func (d *Dispatcher) handleDelCommand(ctx context.Context, r *request) (models.Response, error) {
	if len(r.ev.Args) == 0 {
		return d.usage(r, "/del_command <name>"), nil
	}
	name := customization.NormalizeCommandName(r.ev.Args[0])
	removed, err := d.custom.RemoveCustomCommand(ctx, r.ev.ChatID, name)
	if err != nil {
		return models.Response{}, err
	}
	id := i18n.MsgCommandRemoved
	if !removed {
		id = i18n.MsgCommandMissing
	}
	var resp models.Response
	resp.Reply(d.t(r, id, map[string]interface{}{"Command": name}))
	return resp, nil
}

func (d *Dispatcher) handleCommands(ctx context.Context, r *request) (models.Response, error) {
	commands, err := d.custom.CustomCommands(ctx, r.ev.ChatID)
	if err != nil {
		return models.Response{}, err
	}
	var resp models.Response
	if len(commands) == 0 {
		resp.Reply(d.t(r, i18n.MsgCommandsEmpty, nil))
		return resp, nil
	}
	lines := []string{d.t(r, i18n.MsgCommandsTitle, nil)}
	for _, c := range commands {
		lines = append(lines, "/"+html.EscapeString(c.Name))
	}
	resp.ReplyHTML(strings.Join(lines, "\n"), nil)
	return resp, nil
}

func (d *Dispatcher) handleLanguage(ctx context.Context, r *request) (models.Response, error) {
	if len(r.ev.Args) == 0 {
		return d.usage(r, "/language <"+strings.Join(d.localizer.Languages(), "|")+">"), nil
	}
	lang := strings.ToLower(r.ev.Args[0])
	if err := d.custom.SetUserLanguage(ctx, r.ev.UserID, r.ev.Username, lang, d.localizer.Languages()); err != nil {
		return models.Response{}, err
	}
	r.lang = lang
	var resp models.Response
	resp.Reply(d.t(r, i18n.MsgLanguageSet, map[string]interface{}{"Language": lang}))
	return resp, nil
}

// handleCustomCommand answers an admin-defined command. Unknown commands
// are ignored.
func (d *Dispatcher) handleCustomCommand(ctx context.Context, r *request, name string) (models.Response, error) {
	var resp models.Response
	if name == "" {
		return resp, nil
	}
	on, err := d.custom.FeatureEnabled(ctx, r.ev.ChatID, models.FeatureCustomCommands)
	if err != nil || !on {
		return resp, err
	}
	text, found, err := d.custom.RunCustomCommand(ctx, r.ev.ChatID, name)
	if err != nil {
		return resp, err
	}
	if !found {
		r.log.Debug("Unknown command")
		return resp, nil
	}
	d.recorder.RecordCommandExecuted("custom")
	resp.Reply(text)
	return resp, nil
}

// splitFirst splits off the first whitespace separated word.
func splitFirst(text string) (string, string) {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, func(c rune) bool { return c == ' ' || c == '\n' || c == '\t' })
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}

// splitQuoted splits `"multi word trigger" response`; an unquoted first
// word is accepted too.
func splitQuoted(text string) (string, string) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) {
		end := strings.Index(text[1:], `"`)
		if end < 0 {
			return "", ""
		}
		return strings.TrimSpace(text[1 : end+1]), strings.TrimSpace(text[end+2:])
	}
	return splitFirst(text)
}
