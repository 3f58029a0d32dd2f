package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const newTopicTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#fff;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid rgb(14,165,233);border-radius:.25rem;margin:40px auto;padding:20px;width:550px">
    <tbody>
      <tr><td>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Dear {{.RecipientUsername}},</p>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000"><strong>{{.AuthorUsername}}</strong> started a new topic:</p>
        <h1 style="color:#000;font-size:18px;font-weight:600;margin:24px 0">{{.Title}}</h1>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(243,244,246);border-radius:.75rem;padding:0 1rem">
          <tbody><tr><td><p style="font-size:13px;line-height:22px;margin:16px 0;color:rgb(51,51,51)">{{.Excerpt}}</p></td></tr></tbody>
        </table>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
          <tbody><tr><td>
            <a href="{{.PageURL}}" target="_blank" style="line-height:100%;text-decoration:none;display:inline-block;padding:12px 20px;background-color:rgb(14,165,233);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600">View topic</a>
          </td></tr></tbody>
        </table>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">
          You get this email because you subscribed to new topics.
          {{if .UnsubscribeURL}}<a href="{{.UnsubscribeURL}}" style="color:rgb(156,163,175)">Unsubscribe</a>{{end}}
          <br />&copy;{{year}} {{.SiteName}}
        </p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

// NewTopicData is the data for new-topic notification emails.
type NewTopicData struct {
	SiteName          string
	RecipientUsername string
	AuthorUsername    string
	Title             string
	Excerpt           string
	PageURL           string
	UnsubscribeURL    string
}

var tplFuncs = template.FuncMap{
	"year": func() int { return time.Now().Year() },
}

var newTopic = template.Must(template.New("new_topic").Funcs(tplFuncs).Parse(newTopicTpl))

// RenderNewTopic returns the subject and HTML body of a new-topic email.
func RenderNewTopic(data NewTopicData) (subject, html string, err error) {
	if strings.TrimSpace(data.SiteName) == "" {
		data.SiteName = "Forum"
	}
	var buf bytes.Buffer
	if err := newTopic.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("[%s] New topic: %s", data.SiteName, data.Title), buf.String(), nil
}
