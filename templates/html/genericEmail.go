package templates

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// RenderGenericEmail generates branded HTML for a generic email.
// The subject is displayed in the header banner, and bodyContent is plain text
// that gets HTML-escaped and has newlines converted to <br> tags.
func RenderGenericEmail(subject, bodyContent string) string {
	escaped := html.EscapeString(bodyContent)
	htmlBody := strings.ReplaceAll(escaped, "\n", "<br>")
	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f3f7f4; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #16a34a 0%%, #0d9488 100%%); padding: 32px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 22px; font-weight: 700; }
    .content { padding: 32px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .footer { padding: 24px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>SwachhSnap | keeping the city clean, one photo at a time</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, htmlBody)
}

// DigestItem is one pending complaint in the admin digest
type DigestItem struct {
	ID        string
	Category  string
	Status    string
	Sweeper   string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// RenderComplaintDigest returns the subject, plain text and HTML of the
// daily high priority digest sent to admins
func RenderComplaintDigest(name string, items []DigestItem, dashboardURL string, now time.Time) (subject, plain, htmlContent string) {
	subject = fmt.Sprintf("SwachhSnap: %d high priority complaint(s) pending", len(items))

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "These complaints near hospitals and schools are still open as of %s:\n\n", now.UTC().Format("02 Jan 2006 15:04 MST"))
	for _, it := range items {
		sweeper := it.Sweeper
		if sweeper == "" {
			sweeper = "unassigned"
		}
		age := now.Sub(it.CreatedAt).Round(time.Hour)
		fmt.Fprintf(&b, "- %s (%s) at %.5f, %.5f, %s, open %s, sweeper: %s\n",
			it.Category, it.ID, it.Latitude, it.Longitude, it.Status, age, sweeper)
	}
	if dashboardURL != "" {
		fmt.Fprintf(&b, "\nReview them on the admin dashboard: %s\n", dashboardURL)
	}
	plain = b.String()
	return subject, plain, RenderGenericEmail(subject, plain)
}
