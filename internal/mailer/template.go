package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Confirmation is the data shown in a booking confirmation mail.
type Confirmation struct {
	BookingID   uint64
	To          string
	MovieTitle  string
	StartsAt    time.Time
	Seats       []string
	AmountCents uint64
	Currency    string
}

// showtimeZone is where showtimes are rendered for customers.
var showtimeZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}()

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.5;">
  <h2>Hi,</h2>
  <p>Your booking for <strong style="color: #F84565;">{{.Title}}</strong> is confirmed.</p>
  <p>
    <strong>Booking:</strong> #{{.BookingID}}<br/>
    <strong>Date:</strong> {{.Date}}<br/>
    <strong>Time:</strong> {{.Time}}<br/>
    <strong>Seats:</strong> {{.Seats}}<br/>
    <strong>Amount paid:</strong> {{.Amount}}
  </p>
  <p>Enjoy the show!</p>
</div>`))

// RenderConfirmation returns the subject and HTML body for c.
func RenderConfirmation(c Confirmation) (subject, body string, err error) {
	title := c.MovieTitle
	if title == "" {
		title = "your show"
	}
	data := struct {
		Title     string
		BookingID uint64
		Date      string
		Time      string
		Seats     string
		Amount    string
	}{
		Title:     title,
		BookingID: c.BookingID,
		Date:      "-",
		Time:      "-",
		Seats:     strings.Join(c.Seats, ", "),
		Amount:    FormatAmount(c.AmountCents, c.Currency),
	}
	if !c.StartsAt.IsZero() {
		local := c.StartsAt.In(showtimeZone)
		data.Date = local.Format("Monday, 2 January 2006")
		data.Time = local.Format("15:04")
	}
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("mailer: render confirmation: %w", err)
	}
	return fmt.Sprintf("Payment confirmation: %q booked!", title), buf.String(), nil
}

// ShowAnnouncement is the data shown in a new-show mail.
type ShowAnnouncement struct {
	MovieTitle  string
	StartsAt    time.Time
	PriceCents  uint32
	Currency    string
	BookingLink string
}

var announcementTmpl = template.Must(template.New("announcement").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.5;">
  <h2>New show added!</h2>
  <p>A new show has been scheduled:</p>
  <p>
    <strong style="color: #F84565;">{{.Title}}</strong><br/>
    <strong>Showtime:</strong> {{.Showtime}}<br/>
    <strong>Ticket price:</strong> {{.Price}}
  </p>
  {{if .Link}}<p><a href="{{.Link}}">Book your seats</a> before they're gone!</p>{{end}}
  <p style="font-size: 12px; color: #777;">This is an automated email. Please do not reply.</p>
</div>`))

// RenderShowAnnouncement returns the subject and HTML body for a.
func RenderShowAnnouncement(a ShowAnnouncement) (subject, body string, err error) {
	title := a.MovieTitle
	if title == "" {
		title = "Movie"
	}
	data := struct {
		Title    string
		Showtime string
		Price    string
		Link     string
	}{
		Title:    title,
		Showtime: "-",
		Price:    FormatAmount(uint64(a.PriceCents), a.Currency),
		Link:     a.BookingLink,
	}
	if !a.StartsAt.IsZero() {
		data.Showtime = a.StartsAt.In(showtimeZone).Format("Mon, January 2 at 3:04 PM")
	}
	var buf bytes.Buffer
	if err := announcementTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("mailer: render announcement: %w", err)
	}
	return "New Show Added - " + title, buf.String(), nil
}

// FormatAmount renders minor units as "INR 400.00".
func FormatAmount(minor uint64, currency string) string {
	cur := strings.ToUpper(currency)
	if cur == "" {
		cur = "INR"
	}
	return fmt.Sprintf("%s %d.%02d", cur, minor/100, minor%100)
}
