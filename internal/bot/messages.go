package bot

import (
	"fmt"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

// Reply texts (HTML parse mode)
const (
	msgStart = `👋 ¡Hola! Soy el bot de cotización del <b>dólar oficial</b>.

Te aviso solo cuando el precio cambia, nunca más seguido que el intervalo que elijas.

• /cotizacion - cotización actual
• /configurar - activar avisos automáticos
• /parar - detener avisos
• /estado - ver tu configuración
• /help - ayuda`

	msgHelp = `📚 <b>Ayuda</b>

• /cotizacion - cotización actual del dólar oficial
• /configurar [segundos] - activar avisos automáticos
• /cancelar - cancelar la configuración en curso
• /parar - detener avisos
• /estado - ver tu configuración

Ejemplo: <code>/configurar 30</code> te avisa cuando cambie el precio, como máximo una vez cada 30 segundos.`

	msgConfigPrompt   = "⚙️ ¿Cada cuántos segundos como mínimo querés recibir avisos?\n\nEscribí un número entre %d y %d."
	msgConfigInvalid  = "😅 Eso no es un número válido. Escribí solo el número, por ejemplo <code>30</code>, o /cancelar."
	msgConfigRange    = "❌ El intervalo debe estar entre %d y %d segundos.\n\n🔄 Intentá nuevamente:"
	msgConfigSuccess  = "✅ Avisos activados: como máximo uno cada <b>%d</b> segundos, solo cuando cambie el precio.\n\n🛑 Para detenerlos: /parar"
	msgConfigCancel   = "❌ Configuración cancelada. No se guardó ningún cambio."
	msgNothingPending = "No hay ninguna configuración en curso."
	msgStopSuccess    = "🛑 Avisos automáticos detenidos. Podés reactivarlos con /configurar."
	msgNoConfig       = "📭 No tenés avisos automáticos activos. Usá /configurar para activarlos."
	msgCurrentConfig  = "📊 <b>Tu configuración</b>\n\n⏰ Intervalo: %d segundos\n🔄 Estado: %s"
	msgQuoteError     = "❌ No se pudo obtener la cotización.\n\n🔄 Intentá nuevamente en unos minutos."
	msgStorageError   = "⚠️ Error interno, intentá nuevamente más tarde."
	msgResetDone      = "♻️ Base de cotización y cursores de envío borrados."
	msgUnknown        = "🤔 No entendí. Usá /help para ver los comandos."
)

func configPrompt() string {
	return fmt.Sprintf(msgConfigPrompt, domain.MinIntervalSeconds, domain.MaxIntervalSeconds)
}

func configRange() string {
	return fmt.Sprintf(msgConfigRange, domain.MinIntervalSeconds, domain.MaxIntervalSeconds)
}

func currentConfig(sub domain.Subscription) string {
	status := "🟢 Activo"
	if !sub.Enabled {
		status = "🔴 Detenido"
	}
	return fmt.Sprintf(msgCurrentConfig, sub.IntervalSeconds, status)
}
