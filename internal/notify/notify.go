package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/change"
	"ratewatch/internal/config"
	"ratewatch/internal/rates"
)

// ErrMissingCredentials means sender, app password or recipient is unset.
var ErrMissingCredentials = errors.New("email credentials not configured")

// NotifyError is a failed alert.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string { return "notify: " + e.Err.Error() }
func (e *NotifyError) Unwrap() error { return e.Err }

// Line is one row of the current-rates table.
type Line struct {
	Name  string
	Quote rates.Quote
}

// Alert is everything one email reports.
type Alert struct {
	Changes   []change.Record
	Current   []Line
	CheckedAt time.Time
}

// Mailer formats an Alert and hands it to a Transport.
type Mailer struct {
	cfg       config.Mail
	transport Transport
}

func NewMailer(cfg config.Mail, transport Transport) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg, transport: transport}
}

// Notify sends a single email for a.Changes. An alert with no changes is a
// no-op.
func (m *Mailer) Notify(ctx context.Context, a Alert) error {
	if len(a.Changes) == 0 {
		return nil
	}
	if !m.cfg.Configured() {
		return &NotifyError{Err: ErrMissingCredentials}
	}
	to := splitAddrs(m.cfg.To)
	msg := Message(m.cfg.From, to, a)
	if err := m.transport.Send(ctx, m.cfg.From, to, msg); err != nil {
		return &NotifyError{Err: err}
	}
	return nil
}

// Subject names the check time so repeated alerts do not thread together.
func Subject(checkedAt time.Time) string {
	return "Mortgage Rate Change Detected - " + checkedAt.UTC().Format("2006-01-02 15:04 UTC")
}

// Body renders the change list followed by the current-rates table.
func Body(a Alert) string {
	var b strings.Builder
	b.WriteString("Mortgage rate change detected!\n")
	fmt.Fprintf(&b, "Checked at: %s\n", a.CheckedAt.UTC().Format("2006-01-02 15:04 UTC"))

	b.WriteString("\nChanges (best rate per product):\n")
	for _, c := range a.Changes {
		name := c.Name
		if name == "" {
			name = c.ProductID
		}
		if c.New() {
			fmt.Fprintf(&b, "  %s: NEW at %s%%\n", name, fixed(c.NewRate, 3))
			continue
		}
		oldRate := decimal.NewFromFloat(*c.OldRate)
		newRate := decimal.NewFromFloat(c.NewRate)
		delta := newRate.Sub(oldRate)
		direction := "UP"
		if delta.Sign() < 0 {
			direction = "DOWN"
		}
		fmt.Fprintf(&b, "  %s: %s%% -> %s%% (%s %s%%)\n",
			name, oldRate.StringFixed(3), newRate.StringFixed(3), direction, delta.Abs().StringFixed(3))
	}

	if len(a.Current) > 0 {
		b.WriteString("\n")
		b.WriteString(Table(a.Current, "Current"))
	}
	return b.String()
}

// Table formats quotes as a fixed-width text table.
func Table(lines []Line, label string) string {
	rule := strings.Repeat("-", 75)
	var b strings.Builder
	fmt.Fprintf(&b, "%s Rates:\n%s\n", label, rule)
	fmt.Fprintf(&b, "%-30s %7s %7s %12s %7s\n", "Product", "Rate", "APR", "Payment", "Points")
	b.WriteString(rule + "\n")
	for _, l := range lines {
		q := l.Quote
		name := l.Name
		if name == "" {
			name = q.ProductID
		}
		rate := fixed(q.Rate, 3) + "%"
		apr, payment, points := "N/A", "N/A", "N/A"
		if q.APR != nil {
			apr = fixed(*q.APR, 3) + "%"
		}
		if q.MonthlyPayment != nil {
			payment = "$" + money(*q.MonthlyPayment)
		}
		if q.Points != nil {
			points = fixed(*q.Points, 1)
		}
		fmt.Fprintf(&b, "%-30s %7s %7s %12s %7s\n", name, rate, apr, payment, points)
	}
	b.WriteString(rule + "\n")
	return b.String()
}

// Message builds the full RFC 5322 message with CRLF line endings.
func Message(from string, to []string, a Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(a.CheckedAt)))
	fmt.Fprintf(&b, "Date: %s\r\n", a.CheckedAt.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(Body(a), "\n", "\r\n"))
	return []byte(b.String())
}

func fixed(f float64, places int32) string {
	return decimal.NewFromFloat(f).StringFixed(places)
}

// money renders f with two decimals and thousands separators.
func money(f float64) string {
	s := decimal.NewFromFloat(f).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

func splitAddrs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
