package notify

import (
	"bytes"
	"html/template"

	"github.com/go-faster/errors"
)

var templateSources = map[Template]string{
	TemplateOrderConfirmation: `<h1>Thank you for your order, {{.CustomerName}}!</h1>
<p>Order <strong>{{.OrderNumber}}</strong> has been received.</p>
<table>{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice.StringFixed 2}}</td></tr>{{end}}</table>
<p>Total: {{.Total.StringFixed 2}}</p>`,
	TemplateOrderCancelled: `<h1>Order {{.OrderNumber}} cancelled</h1>
<p>Hello {{.CustomerName}}, your order has been cancelled.</p>`,
	TemplateOrderStatusUpdate: `<h1>Order {{.OrderNumber}} update</h1>
<p>Hello {{.CustomerName}}, your order status is now <strong>{{.Status}}</strong>, payment {{.PaymentStatus}}.</p>`,
	TemplateQuoteRequested: `<h1>New quote request</h1>
<p>{{.CustomerName}} ({{.CustomerEmail}}) requested a quote for {{.EventType}}.</p>
<p>{{.Description}}</p>`,
	TemplateQuoteUpdated: `<h1>Quote {{.QuoteID}} updated</h1>
<p>{{.CustomerName}} updated the request for {{.EventType}}.</p>
<p>{{.Description}}</p>`,
	TemplateQuoteSent: `<h1>Your quote is ready</h1>
<p>Hello {{.CustomerName}}, your quote for {{.EventType}} is ready for review.</p>
<p>Total: {{.Total.StringFixed 2}}</p>
{{with .Comment}}<p>{{.}}</p>{{end}}
{{with .ValidityDate}}<p>Valid until {{.Format "2006-01-02"}}</p>{{end}}`,
	TemplateQuoteAccepted: `<h1>Quote {{.QuoteID}} accepted</h1>
<p>{{.CustomerName}} ({{.CustomerEmail}}) accepted the quote for {{.EventType}}.</p>`,
	TemplateQuoteDeclined: `<h1>Quote {{.QuoteID}} declined</h1>
<p>{{.CustomerName}} ({{.CustomerEmail}}) declined the quote for {{.EventType}}.</p>
{{with .Comment}}<p>Reason: {{.}}</p>{{end}}`,
	TemplatePasswordReset: `<h1>Password reset</h1>
<p>Hello {{.Name}}, follow <a href="{{.ResetURL}}">this link</a> to choose a new password. It expires in one hour.</p>`,
	TemplateLowStock: `<h1>Low stock alert</h1>
<p>The following products have fewer than {{.Threshold}} units left:</p>
<ul>{{range .Products}}<li>{{.Name}} ({{.SKU}}): {{.Stock}}</li>{{end}}</ul>`,
}

// Renderer turns a Message into an HTML body.
type Renderer struct {
	templates map[Template]*template.Template
}

// NewRenderer parses every built-in template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Template]*template.Template, len(templateSources))}
	for name, src := range templateSources {
		t, err := template.New(string(name)).Parse(src)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", name)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render executes the message template against its data.
func (r *Renderer) Render(msg Message) (string, error) {
	t, ok := r.templates[msg.Template]
	if !ok {
		return "", errors.Errorf("unknown template %q", msg.Template)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, msg.Data); err != nil {
		return "", errors.Wrapf(err, "render %s", msg.Template)
	}
	return buf.String(), nil
}
