package domain

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const displayTimeLayout = "15:04 02/01/2006"

// FormatPrice renders a price as "$1,234.50".
func FormatPrice(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	if d.IsNegative() {
		sb.WriteByte('-')
	}
	sb.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('.')
	sb.WriteString(fracPart)
	return sb.String()
}

// FormatQuote - reply body for an on-demand quote request
func FormatQuote(q Quote, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("🏛️ <b>Dólar Oficial</b>\n\n")
	sb.WriteString(fmt.Sprintf("🟢 <b>Compra:</b> %s\n", FormatPrice(q.BuyPrice)))
	sb.WriteString(fmt.Sprintf("🔴 <b>Venta:</b> %s\n", FormatPrice(q.SellPrice)))
	sb.WriteString(fmt.Sprintf("🕐 <b>Actualizado:</b> %s", now.Format(displayTimeLayout)))
	if q.SourceTimestamp != "" {
		sb.WriteString(fmt.Sprintf("\n📡 <b>Fuente:</b> %s", html.EscapeString(q.SourceTimestamp)))
	}
	return sb.String()
}

// FormatChange - notification body sent to subscribers after a detected change
func FormatChange(ev QuoteChangedEvent) string {
	var sb strings.Builder
	sb.WriteString(FormatQuote(ev.Current, ev.Time))
	if ev.Previous != nil {
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf("📉 Antes: %s / %s",
			FormatPrice(ev.Previous.BuyPrice), FormatPrice(ev.Previous.SellPrice)))
	}
	sb.WriteString("\n\n🎉 ¡COTIZACIÓN ACTUALIZADA! 🎉")
	return sb.String()
}
