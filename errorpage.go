package bifrost

import (
	"errors"
	"html/template"
	"net/http"
)

// errorPage is the data rendered into the issuer's HTML error template.
type errorPage struct {
	Title     string
	Message   string
	ShowRetry bool
	Debug     string
}

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#4b3f8f;color:#222;min-height:100vh;margin:0;display:flex;align-items:center;justify-content:center}
.card{background:#fff;border-radius:16px;padding:32px;max-width:420px;text-align:center}
button{margin-top:16px;padding:10px 24px;border:0;border-radius:8px;background:#4b3f8f;color:#fff}
.debug{margin-top:16px;font:12px monospace;color:#777}
</style>
</head>
<body>
<div class="card">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .ShowRetry}}<button onclick="location.reload()">Try again</button>{{end}}
{{if .Debug}}<div class="debug">{{.Debug}}</div>{{end}}
</div>
</body>
</html>
`))

// pageFor chooses the page content for an issuance failure.
func pageFor(err error, reason, clientIP string) errorPage {
	switch {
	case errors.Is(err, ErrIPNotAllowed):
		return errorPage{
			Title:   "Access Denied",
			Message: "This endpoint is not accessible from your location.",
			Debug:   "Your IP: " + clientIP,
		}
	case errors.Is(err, ErrRateLimited):
		return errorPage{
			Title:     "Too Many Requests",
			Message:   "Too many connection attempts. Please wait a moment.",
			ShowRetry: true,
		}
	case errors.Is(err, ErrInvalidCredential):
		return errorPage{
			Title:   "Authentication Required",
			Message: "Invalid or missing authentication credentials.",
		}
	case errors.Is(err, ErrSecretNotConfigured):
		return errorPage{
			Title:   "Configuration Error",
			Message: "Server is not properly configured.",
		}
	case errors.Is(err, ErrMissingClaim), errors.Is(err, ErrMethodNotAllowed):
		return errorPage{
			Title:   "Bad Request",
			Message: reason,
		}
	default:
		return errorPage{
			Title:     "Service Error",
			Message:   "An unexpected error occurred. Please try again.",
			ShowRetry: true,
		}
	}
}

func renderErrorPage(w http.ResponseWriter, status int, page errorPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	errorPageTemplate.Execute(w, page)
}
