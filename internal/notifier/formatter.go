package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"CloseForecaster/internal/calculator"
	"CloseForecaster/internal/model"
)

// FormatForecastDigest formats a multi-day forecast into a Telegram message.
func FormatForecastDigest(symbol string, st calculator.WindowStats, seq model.ForecastSequence, at time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📈 <b>Previsão de fechamento %s</b> | %s\n\n", html.EscapeString(symbol), at.Format("2006-01-02")))

	b.WriteString(fmt.Sprintf("Último fechamento: %.2f\n", st.Last))
	b.WriteString(fmt.Sprintf("Média da janela: %.2f | MM20: %.2f\n", st.SMA, st.SMAShort))
	b.WriteString(fmt.Sprintf("Máx/Mín: %.2f / %.2f (posição %.0f%%)\n", st.High, st.Low, st.Position*100))
	b.WriteString(fmt.Sprintf("RSI14: %.0f\n\n", st.RSI))

	b.WriteString(fmt.Sprintf("🔮 <b>Próximos %d dias úteis:</b>\n", len(seq)))
	for i, p := range seq {
		b.WriteString(fmt.Sprintf("  D+%d: %.2f (%+.2f%%)\n", i+1, p.PredictedPrice,
			calculator.ChangePct(st.Last, p.PredictedPrice)))
	}
	return b.String()
}

// FormatToday formats a single next-close prediction.
func FormatToday(symbol string, pred model.Prediction) string {
	return fmt.Sprintf("📈 <b>%s</b> previsão D+0: %.2f", html.EscapeString(symbol), pred.PredictedPrice)
}

// FormatFailure reports a forecast run that did not complete.
func FormatFailure(symbol string, err error) string {
	return fmt.Sprintf("❌ Falha na previsão de %s: %s", html.EscapeString(symbol), html.EscapeString(err.Error()))
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	return "Comandos disponíveis:\n• /hoje - previsão do próximo fechamento\n• /proximos - previsão dos próximos dias úteis"
}
