package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

var hundred = decimal.NewFromInt(100)

func headline(c domain.Classification) string {
	switch c {
	case domain.ClassThresholdCrossed:
		return "Target price reached"
	case domain.ClassDecreased:
		return "Price decreased"
	case domain.ClassIncreased:
		return "Price increased"
	case domain.ClassExtractionFailed:
		return "Price check failed"
	default:
		return "Price updated"
	}
}

// percentChange returns the signed relative change from old to cur,
// rounded to two decimals.
func percentChange(old, cur domain.Price) string {
	if old == 0 {
		return ""
	}
	d := cur.Decimal().Sub(old.Decimal()).Mul(hundred).Div(old.Decimal()).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

func link(u string, mode Mode) string {
	if mode == ModeHTML {
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(u), html.EscapeString(u))
	}
	return u
}

func bold(s string, mode Mode) string {
	if mode == ModeHTML {
		return "<b>" + html.EscapeString(s) + "</b>"
	}
	return s
}

// formatEntry renders one item as a few lines: headline, link, prices.
func formatEntry(it *Item, mode Mode) string {
	var b strings.Builder

	b.WriteString(bold(headline(it.Event.Classification), mode))
	b.WriteByte('\n')
	b.WriteString(link(it.Subscription.URL, mode))
	b.WriteByte('\n')

	ev := it.Event
	switch {
	case ev.New == nil:
		if ev.FailureReason != "" {
			b.WriteString(escape(ev.FailureReason, mode))
		}
	case ev.Previous == nil:
		b.WriteString(ev.New.String())
	default:
		b.WriteString(ev.Previous.String())
		b.WriteString(" → ")
		b.WriteString(ev.New.String())
		if pct := percentChange(*ev.Previous, *ev.New); pct != "" {
			b.WriteString(" (" + pct + ")")
		}
	}

	if t := it.Subscription.TargetPrice; t != nil {
		b.WriteString("\ntarget: ")
		b.WriteString(t.String())
	}

	return strings.TrimRight(b.String(), "\n")
}

func escape(s string, mode Mode) string {
	if mode == ModeHTML {
		return html.EscapeString(s)
	}
	return s
}

// formatMessages renders items into one message, or into several when the
// result would exceed maxLen characters. Entries are never split.
func formatMessages(items []Item, mode Mode, maxLen int) []string {
	if len(items) == 1 {
		return []string{fitEntry(&items[0], "", mode, maxLen)}
	}

	header := bold(fmt.Sprintf("Price updates (%d)", len(items)), mode)

	var (
		msgs []string
		cur  strings.Builder
	)
	cur.WriteString(header)

	for i := range items {
		entry := fitEntry(&items[i], fmt.Sprintf("%d. ", i+1), mode, maxLen)
		if maxLen > 0 && cur.Len() > 0 &&
			utf8.RuneCountInString(cur.String())+2+utf8.RuneCountInString(entry) > maxLen {
			msgs = append(msgs, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(entry)
	}

	return append(msgs, cur.String())
}

// fitEntry renders one numbered entry within maxLen characters. An HTML
// entry that does not fit is sent without markup, escaped and cut, so no
// tag is ever left open.
func fitEntry(it *Item, prefix string, mode Mode, maxLen int) string {
	entry := prefix + formatEntry(it, mode)
	if maxLen <= 0 || utf8.RuneCountInString(entry) <= maxLen {
		return entry
	}

	plain := prefix + formatEntry(it, ModePlain)
	if mode != ModeHTML {
		return truncate(plain, maxLen)
	}

	cut := truncate(html.EscapeString(plain), maxLen)
	if i := strings.LastIndexByte(cut, '&'); i >= 0 && !strings.Contains(cut[i:], ";") {
		cut = cut[:i]
	}
	return cut
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen])
}
