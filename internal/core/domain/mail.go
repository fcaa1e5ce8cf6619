package domain

import (
	"net/url"
	"strings"
)

const (
	ConfirmEmailSubject = "Protomind: Подтвердите адрес электронной почты."
	ConfirmEmailView    = "email.confirm_email"
)

// Mail is a message queued for delivery. View names the template used to
// render the body; Data is handed to it as-is.
type Mail struct {
	To          string
	Subject     string
	View        string
	Data        map[string]any
	Attachments []Attachment
}

// Attachment is a file carried by a Mail.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ConfirmEmailLink builds {baseURL}?code={code}&email={email}.
func ConfirmEmailLink(baseURL, code, email string) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("email", email)

	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + q.Encode()
}

// NewConfirmEmailMail builds the address confirmation message.
func NewConfirmEmailMail(baseURL, code, email string) Mail {
	return Mail{
		To:      email,
		Subject: ConfirmEmailSubject,
		View:    ConfirmEmailView,
		Data: map[string]any{
			"link": ConfirmEmailLink(baseURL, code, email),
		},
	}
}

// NewConfirmEmailNotification is the confirmation mail sent to a freshly
// created account; it also carries the first-login password.
func NewConfirmEmailNotification(baseURL, code, email, password string) Mail {
	m := NewConfirmEmailMail(baseURL, code, email)
	m.Data["password"] = password
	m.Data["email"] = email
	return m
}
