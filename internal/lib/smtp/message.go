package smtp

import (
	"fmt"
	"mime"
	"strings"
)

// BuildMessage собирает текстовое письмо в формате RFC 5322.
func BuildMessage(from string, to []string, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n"))
}

// Send отправляет письмо через транспорт, открывая отдельную SMTP-сессию.
func Send(transport TransportInterface, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("smtp.Send: no recipients")
	}
	from := transport.GetSMTPUser()

	client, err := transport.Connect()
	if err != nil {
		return fmt.Errorf("smtp.Send: %w", err)
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp.Send: mail from: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("smtp.Send: rcpt %s: %w", addr, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp.Send: data: %w", err)
	}
	if _, err := wc.Write(BuildMessage(from, to, subject, body)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp.Send: write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp.Send: close data: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp.Send: quit: %w", err)
	}
	return nil
}
