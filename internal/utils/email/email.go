package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/dkurbatov/kassa-ledger/internal/config"
	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendDueDigest mails the operator the customers whose next payment date is
// today or overdue.
func (s *Sender) SendDueDigest(to string, customers []models.Customer) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Платежи к получению: %d", len(customers))

	var body strings.Builder
	body.WriteString("Клиенты с наступившим сроком оплаты:\n\n")
	for _, c := range customers {
		date := ""
		if c.NextPaymentDate != nil {
			date = *c.NextPaymentDate
		}
		body.WriteString(fmt.Sprintf(
			"%s — %s, срок %s, остаток %.2f RUB\n",
			c.Name, c.ProductName, date, c.Balance(),
		))
	}
	body.WriteString("\nКасса")
	e.Text = []byte(body.String())

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send digest to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
