package service

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	"strings"
)

const resetSubject = "FortiRent Password Reset Request"

var resetHTML = htmltpl.Must(htmltpl.New("reset").Parse(`<p>Hello {{.Name}},</p>
<p>You recently requested to reset your password for your FortiRent account.</p>
<p>Click the link below to reset your password:</p>
<p><a href="{{.Link}}" style="background-color: #002B5B; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Your Password</a></p>
<p>This link is valid for <b>{{.Validity}}</b>.</p>
<p>If you did not request this, please ignore this email.</p>
<p>Thank you,<br/>The FortiRent Team</p>
`))

type resetMessage struct {
	Subject string
	Text    string
	HTML    string
}

func resetLink(base, token string) string {
	return strings.TrimRight(base, "/") + "/reset-password/" + token
}

func buildResetMessage(name, link, validity string) (resetMessage, error) {
	var b bytes.Buffer
	data := struct{ Name, Link, Validity string }{name, link, validity}
	if err := resetHTML.Execute(&b, data); err != nil {
		return resetMessage{}, err
	}
	text := fmt.Sprintf("Hello %s,\n\nYou requested a password reset. Use this link to reset your password: %s\n"+
		"This link is valid for %s.\n\nIf you did not request this, please ignore this email.\n", name, link, validity)
	return resetMessage{
		Subject: resetSubject,
		Text:    text,
		HTML:    b.String(),
	}, nil
}
