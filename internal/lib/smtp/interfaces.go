// Package smtp отправляет письма уведомлений: о запросах на связь,
// принятых связях и истекающих тарифах.
package smtp

import "io"

// Client подмножество net/smtp.Client, через которое уходит одно письмо.
// Подменяется в тестах потребителя уведомлений.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает SMTP-сессию для сервиса рассылки и сообщает
// адрес отправителя, от имени которого идут уведомления.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
