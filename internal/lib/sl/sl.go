// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель: упростить формирование структурированных полей лога,
// например, для передачи информации об ошибках.
package sl

import (
	"io"
	"log/slog"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
)

// New создаёт текстовый логгер. Для local и dev пишется уровень debug, иначе info.
func New(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch env {
	case "local", "dev":
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Kind возвращает атрибут с машиночитаемым видом ошибки.
func Kind(err error) slog.Attr {
	return slog.String("kind", apperr.Kind(err))
}

// Security помечает запись лога как событие безопасности.
func Security(event string) slog.Attr {
	return slog.String("security_event", event)
}
