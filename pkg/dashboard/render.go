package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/store"
)

// View is a printable copy of the dashboard state.
type View struct {
	Connected     bool                  `json:"connected"`
	Loading       bool                  `json:"loading"`
	InvoiceCount  int                   `json:"invoiceCount"`
	Stats         store.Stats           `json:"totalStats"`
	Recent        []models.Invoice      `json:"recentInvoices"`
	Activities    []models.Activity     `json:"recentActivities"`
	Notifications []models.Notification `json:"notifications"`
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	statusStyles = map[models.InvoiceStatus]lipgloss.Style{
		models.StatusPaid:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		models.StatusOverdue: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		models.StatusDraft:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		models.StatusSent:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		models.StatusViewed:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		models.StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

// Render writes a styled summary of v.
func Render(w io.Writer, v View) error {
	var b strings.Builder

	conn := offlineStyle.Render("● disconnected")
	if v.Connected {
		conn = onlineStyle.Render("● connected")
	}
	b.WriteString(titleStyle.Render("Invoices") + "  " + conn)
	if v.Loading {
		b.WriteString("  " + mutedStyle.Render("loading…"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s   %s %s   %s %s   %s %s\n",
		mutedStyle.Render("Paid"), formatAmount(v.Stats.TotalPaid),
		mutedStyle.Render("Overdue"), formatAmount(v.Stats.TotalOverdue),
		mutedStyle.Render("Draft"), formatAmount(v.Stats.TotalDraft),
		mutedStyle.Render("Unpaid"), formatAmount(v.Stats.TotalUnpaid))
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("%d invoices", v.InvoiceCount)))

	b.WriteString(sectionStyle.Render("Recent invoices") + "\n")
	if len(v.Recent) == 0 {
		b.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, inv := range v.Recent {
		status := lipgloss.NewStyle().Width(8).Render(string(inv.Status))
		if style, ok := statusStyles[inv.Status]; ok {
			status = style.Width(8).Render(string(inv.Status))
		}
		fmt.Fprintf(&b, "  %-10s %-22s %s %12s\n",
			inv.Number, truncate(inv.ClientName, 22), status, formatAmount(inv.Amount))
	}

	b.WriteString("\n" + sectionStyle.Render("Recent activity") + "\n")
	if len(v.Activities) == 0 {
		b.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, a := range v.Activities {
		fmt.Fprintf(&b, "  %s %s %s\n",
			mutedStyle.Render(a.Time.Local().Format("15:04:05")), a.Actor, a.Action)
	}

	if len(v.Notifications) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Notifications") + "\n")
		for _, n := range v.Notifications {
			fmt.Fprintf(&b, "  [%s] %s\n", n.Type, n.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var out []byte
	for i, r := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, r)
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
