package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/isdelr/reminder-be/internal/models"
)

// DueLayout formats due instants in notifications.
const DueLayout = "Mon, 02 Jan 2006 15:04 MST"

// Renderer turns reminders into Messages.
type Renderer struct {
	appName      string
	dashboardURL string
	loc          *time.Location
	year         func() int
}

// NewRenderer creates a Renderer. A nil loc means UTC.
func NewRenderer(appName, dashboardURL string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		appName:      appName,
		dashboardURL: dashboardURL,
		loc:          loc,
		year:         func() int { return time.Now().Year() },
	}
}

type reminderView struct {
	AppName       string
	DashboardURL  string
	Name          string
	CategoryLabel string
	Title         string
	Due           string
	Notes         string
	Year          int
}

// Reminder renders the notification for a due reminder.
func (r *Renderer) Reminder(name string, rem models.Reminder) (Message, error) {
	view := reminderView{
		AppName:       r.appName,
		DashboardURL:  r.dashboardURL,
		Name:          name,
		CategoryLabel: rem.Category.Label(),
		Title:         rem.Title,
		Due:           rem.RemindAt.In(r.loc).Format(DueLayout),
		Year:          r.year(),
	}
	if rem.Notes != nil {
		view.Notes = *rem.Notes
	}

	msg := Message{
		Kind:     KindReminder,
		Subject:  "⏰ Reminder: " + rem.Title,
		Reminder: &rem,
		DueLabel: view.Due,
	}
	var err error
	if msg.Text, err = execText(reminderText, view); err != nil {
		return Message{}, err
	}
	if msg.HTML, err = execHTML(reminderHTML, view); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Test renders the synthetic reminder used to check mail delivery.
func (r *Renderer) Test(name string, now time.Time) (Message, error) {
	notes := "This is a test email to verify email functionality."
	msg, err := r.Reminder(name, models.Reminder{
		Title:    "Test Reminder",
		Category: models.CategoryOther,
		RemindAt: now,
		Notes:    &notes,
	})
	if err != nil {
		return Message{}, err
	}
	msg.Kind = KindTest
	msg.Reminder = nil
	return msg, nil
}

// Welcome renders the signup greeting.
func (r *Renderer) Welcome(name string) (Message, error) {
	view := struct {
		AppName      string
		DashboardURL string
		Name         string
		Categories   []string
	}{AppName: r.appName, DashboardURL: r.dashboardURL, Name: name}
	for _, c := range models.Categories {
		view.Categories = append(view.Categories, c.Label())
	}

	msg := Message{Kind: KindWelcome, Subject: fmt.Sprintf("🎉 Welcome to %s!", r.appName)}
	var err error
	if msg.Text, err = execText(welcomeText, view); err != nil {
		return Message{}, err
	}
	if msg.HTML, err = execHTML(welcomeHTML, view); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func execText(t *texttemplate.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func execHTML(t *htmltemplate.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

var reminderText = texttemplate.Must(texttemplate.New("reminder.txt").Parse(`Hi {{.Name}},

This is a friendly reminder about:

  [{{.CategoryLabel}}] {{.Title}}
  Scheduled time: {{.Due}}
{{- if .Notes}}
  Notes: {{.Notes}}
{{- end}}

Don't forget to complete this task!
View your dashboard: {{.DashboardURL}}

You received this email because you set up a reminder in {{.AppName}}.
`))

var reminderHTML = htmltemplate.Must(htmltemplate.New("reminder.html").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
  .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
  .reminder-box { background: white; padding: 20px; border-radius: 8px; border-left: 4px solid #667eea; margin: 20px 0; }
  .category { display: inline-block; padding: 5px 15px; background: #667eea; color: white; border-radius: 20px; font-size: 14px; }
  .time { color: #666; font-size: 16px; margin: 10px 0; }
  .notes { background: #fff3cd; padding: 15px; border-radius: 5px; margin-top: 15px; border-left: 3px solid #ffc107; }
  .footer { text-align: center; margin-top: 20px; color: #999; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>⏰ Reminder Alert!</h1></div>
  <div class="content">
    <p>Hi <strong>{{.Name}}</strong>,</p>
    <p>This is a friendly reminder about:</p>
    <div class="reminder-box">
      <span class="category">{{.CategoryLabel}}</span>
      <h2 style="margin: 15px 0; color: #333;">{{.Title}}</h2>
      <p class="time">⏰ Scheduled Time: {{.Due}}</p>
      {{if .Notes}}<div class="notes"><strong>📝 Notes:</strong><br>{{.Notes}}</div>{{end}}
    </div>
    <p>Don't forget to complete this task!</p>
    <p style="text-align: center; margin-top: 30px;">
      <a href="{{.DashboardURL}}" style="background: #667eea; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">View Dashboard</a>
    </p>
  </div>
  <div class="footer">
    <p>You received this email because you set up a reminder in {{.AppName}}.</p>
    <p>&copy; {{.Year}} {{.AppName}}. All rights reserved.</p>
  </div>
</div>
</body>
</html>
`))

var welcomeText = texttemplate.Must(texttemplate.New("welcome.txt").Parse(`Hi {{.Name}}!

Thank you for signing up to {{.AppName}}. Your account has been created successfully.

You can now set reminders for:
{{range .Categories}}  - {{.}}
{{end}}
Log in: {{.DashboardURL}}
`))

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome.html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center;">
    <h1>Welcome to {{.AppName}}! 🎉</h1>
  </div>
  <div style="padding: 30px; background: #f9f9f9;">
    <h2>Hi {{.Name}}!</h2>
    <p>Thank you for signing up! Your account has been created successfully.</p>
    <p>You can now set reminders for:</p>
    <ul>{{range .Categories}}<li>{{.}}</li>{{end}}</ul>
    <p style="text-align: center; margin-top: 30px;">
      <a href="{{.DashboardURL}}" style="background: #667eea; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Login Now</a>
    </p>
  </div>
</div>
`))
