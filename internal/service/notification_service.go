package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"kanzey-backend/config"
	"kanzey-backend/internal/models"
	"kanzey-backend/internal/util"

	"github.com/wneessen/go-mail"
	"github.com/yeqown/go-qrcode"
	"go.uber.org/zap"
)

// Mailer delivers confirmed tickets by email with the QR code attached.
// Delivery is strictly after-the-fact: a failure here never affects the
// ticket's confirmed status.
type Mailer struct {
	cfg    config.SMTPConfig
	client *mail.Client
	logger *zap.Logger
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg config.SMTPConfig) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize smtp client: %w", err)
	}

	return &Mailer{
		cfg:    cfg,
		client: client,
		logger: util.GetLogger(),
	}, nil
}

// SendTicketEmail composes and sends the ticket delivery email for a
// confirmed purchase.
func (m *Mailer) SendTicketEmail(ctx context.Context, event *models.TicketConfirmedEvent) error {
	if event.BuyerEmail == "" {
		m.logger.Warn("No buyer email on confirmed ticket, skipping delivery",
			zap.String("ticket_id", event.TicketID))
		return nil
	}

	qrPath, err := m.renderQRCode(event)
	if err != nil {
		return err
	}
	defer os.Remove(qrPath)

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(event.BuyerEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Votre billet pour %s", event.EventTitle))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Bonjour %s,\n\n"+
			"Votre paiement de %d %s a bien ete recu.\n"+
			"Billet: %s (x%d) pour %s.\n\n"+
			"Presentez le QR code ci-joint a l'entree.\n\n"+
			"Kanzey.co",
		event.BuyerName, event.TotalPrice, event.Currency,
		event.TicketID, event.Quantity, event.EventTitle))
	msg.AttachFile(qrPath)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		util.TicketEmailsFailedTotal.Inc()
		return fmt.Errorf("failed to send ticket email: %w", err)
	}

	util.TicketEmailsSentTotal.Inc()
	m.logger.Info("Ticket email sent",
		zap.String("ticket_id", event.TicketID),
		zap.String("to", event.BuyerEmail))
	return nil
}

func (m *Mailer) renderQRCode(event *models.TicketConfirmedEvent) (string, error) {
	qrc, err := qrcode.New(event.QRData)
	if err != nil {
		return "", fmt.Errorf("failed to build qr code: %w", err)
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s.jpeg", event.TicketID))
	if err := qrc.Save(path); err != nil {
		return "", fmt.Errorf("failed to save qr code: %w", err)
	}
	return path, nil
}
