package action

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// GenericHonorific addresses customers whose display name is unknown.
const GenericHonorific = "Valued Customer"

const messageSubject = "An update on your recent support request"

var messageTemplate = template.Must(template.New("resolution").Parse(
	`Dear {{.Name}},

We are very sorry about your recent experience and have looked into it right away.
{{.Resolution}}.
{{- if .CouponCode}}
Your coupon code is {{.CouponCode}}.
{{- end}}

Thank you for your patience and for being our customer.

Customer Care Team
`))

type messageData struct {
	Name       string
	Resolution string
	CouponCode string
}

// DraftMessage fills the resolution template. Identical inputs always produce
// identical output.
func DraftMessage(displayName, justification, couponCode string) (subject, body string, err error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = GenericHonorific
	}

	var buf bytes.Buffer
	err = messageTemplate.Execute(&buf, messageData{
		Name:       name,
		Resolution: strings.TrimSuffix(strings.TrimSpace(justification), "."),
		CouponCode: couponCode,
	})
	if err != nil {
		return "", "", fmt.Errorf("render message: %w", err)
	}
	return messageSubject, buf.String(), nil
}
