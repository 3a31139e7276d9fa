package emails

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Sender sends transactional emails. Nil = no-op.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
}

// BrevoClient sends emails via Brevo (Sendinblue) API: SENDINBLUE_API_KEY, MAIL_FROM.
// An empty APIKey turns every send into a no-op.
type BrevoClient struct {
	APIKey      string
	MailFrom    string
	FrontendURL string
	Endpoint    string
	Client      *resty.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@webcarros.com.br"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoClient) client() *resty.Client {
	if c.Client == nil {
		c.Client = resty.New().SetTimeout(15 * time.Second)
	}
	return c.Client
}

func (c *BrevoClient) send(ctx context.Context, toEmail, toName, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "WebCarros"},
		To:          []BrevoTo{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoReplyTo{Email: c.from(), Name: "WebCarros"},
	}
	resp, err := c.client().R().
		SetContext(ctx).
		SetHeader("api-key", c.APIKey).
		SetHeader("Accept", "application/json").
		SetBody(body).
		Post(c.endpoint())
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode())
	}
	return nil
}

// SendWelcome sends the welcome email after account creation.
func (c *BrevoClient) SendWelcome(ctx context.Context, toEmail, name string) error {
	if c.APIKey == "" {
		return nil
	}
	if name == "" {
		name = "there"
	}
	return c.send(ctx, toEmail, name, "Bem-vindo ao WebCarros!", EmailLayout(welcomeContent(name, c.dashboardURL())))
}

func (c *BrevoClient) dashboardURL() string {
	if c.FrontendURL != "" {
		return c.FrontendURL + "/dashboard/new"
	}
	return "https://webcarros.com.br/dashboard/new"
}

func welcomeContent(userName, dashboardURL string) string {
	return fmt.Sprintf(`
    <h1>Olá, %s!</h1>
    <p>Sua conta no <strong>WebCarros</strong> foi criada. Agora você já pode anunciar seus carros e acompanhar seus anúncios pelo painel.</p>
    <center>
      <a href="%s" class="wc-button">Cadastrar carro</a>
    </center>
    <p style="margin-top: 20px; font-size: 14px; color: #666;">
      Se você não criou esta conta, ignore este email.
    </p>
`, EscapeHTML(userName), dashboardURL)
}
