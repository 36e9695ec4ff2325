package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphPattern = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	codeBlockPattern = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	tagPattern       = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNamePattern   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinesPattern  = regexp.MustCompile(`\n{3,}`)
)

var supportedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true, "code": true, "pre": true, "a": true,
}

// ToTelegramHTML converts markdown to Telegram-compatible HTML
func ToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	// No smartypants: Telegram rejects named entities such as &ldquo;
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.HTMLFlagsNone,
	})
	out := string(blackfriday.Run([]byte(markdown),
		blackfriday.WithRenderer(renderer),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
	))

	return cleanHTMLForTelegram(out)
}

// cleanHTMLForTelegram cleans HTML to be compatible with Telegram
func cleanHTMLForTelegram(out string) string {
	out = paragraphPattern.ReplaceAllString(out, "$1\n")

	out = strings.ReplaceAll(out, "<strong>", "<b>")
	out = strings.ReplaceAll(out, "</strong>", "</b>")
	out = strings.ReplaceAll(out, "<em>", "<i>")
	out = strings.ReplaceAll(out, "</em>", "</i>")
	out = strings.ReplaceAll(out, "<del>", "<s>")
	out = strings.ReplaceAll(out, "</del>", "</s>")

	out = codeBlockPattern.ReplaceAllString(out, "<pre>$1</pre>")

	// Lists become bullet lines
	for _, tag := range []string{"<ul>", "</ul>", "<ol>", "</ol>"} {
		out = strings.ReplaceAll(out, tag, "")
	}
	out = strings.ReplaceAll(out, "<li>", "• ")
	out = strings.ReplaceAll(out, "</li>", "")

	out = tagPattern.ReplaceAllStringFunc(out, func(match string) string {
		if m := tagNamePattern.FindStringSubmatch(match); len(m) > 1 && supportedTags[strings.ToLower(m[1])] {
			return match
		}
		return ""
	})

	out = newlinesPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Member identifies who a greeting is about.
type Member struct {
	UserID      int64
	DisplayName string
	Username    string
}

// Mention returns an HTML link that notifies the member.
func (m Member) Mention() string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, m.UserID, html.EscapeString(m.DisplayName))
}

// ExpandPlaceholders substitutes {name}, {username}, {chat} and {mention}.
// Values are HTML-escaped; the template itself is left as is.
func ExpandPlaceholders(template string, member Member, chatTitle string) string {
	username := member.Username
	if username != "" && !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	if username == "" {
		username = member.DisplayName
	}
	r := strings.NewReplacer(
		"{name}", html.EscapeString(member.DisplayName),
		"{username}", html.EscapeString(username),
		"{chat}", html.EscapeString(chatTitle),
		"{mention}", member.Mention(),
	)
	return r.Replace(template)
}

// RenderGreeting turns an admin-authored welcome, goodbye or rules text into
// Telegram HTML with placeholders filled in.
func RenderGreeting(template string, member Member, chatTitle string) string {
	return ExpandPlaceholders(ToTelegramHTML(template), member, chatTitle)
}
