package ses

import (
	"bytes"
	htmltemplate "html/template"
	"io"
	texttemplate "text/template"

	"rental-application-engine/internal/models"
)

type renderer interface {
	Execute(w io.Writer, data any) error
}

type emailTemplate struct {
	subject renderer
	text    renderer
	html    renderer
}

func render(t renderer, vars map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f3b73; color: white; padding: 24px; border-radius: 10px 10px 0 0; text-align: center; }
        .content { background: #f9f9f9; padding: 24px; border-radius: 0 0 10px 10px; }
        .card { background: white; border-radius: 8px; padding: 16px; margin: 12px 0; }
        .cta-button { display: inline-block; background: #1f3b73; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px; }
        .footer { text-align: center; margin-top: 24px; color: #999; font-size: 12px; }
    </style>
</head>
<body>{{template "body" .}}
    <div class="footer"><p>Référence de candidature : {{.application_id}}</p></div>
</body>
</html>`

const submittedHTML = `{{define "body"}}
    <div class="header"><h1>Candidature envoyée</h1></div>
    <div class="content">
        <p>Votre dossier de candidature a bien été transmis à l'agence.</p>
        <div class="card">
            <h3>{{.property_title}}</h3>
            <p>{{.property_location}}</p>
            <p><strong>{{.property_price}} €</strong></p>
        </div>
        <p>Vous serez informé(e) dès qu'un agent aura examiné vos documents.</p>
        {{if .dashboard_url}}<p style="text-align: center;"><a href="{{.dashboard_url}}" class="cta-button">Suivre ma candidature</a></p>{{end}}
    </div>
{{end}}`

const submittedText = `Bonjour,

Votre dossier de candidature pour "{{.property_title}}" ({{.property_location}}, {{.property_price}} €) a bien été transmis.
Vous serez informé(e) dès qu'un agent aura examiné vos documents.
{{if .dashboard_url}}
Suivre ma candidature : {{.dashboard_url}}
{{end}}
Référence : {{.application_id}}
`

const rejectionHTML = `{{define "body"}}
    <div class="header"><h1>Document à remplacer</h1></div>
    <div class="content">
        <p>Un agent a examiné votre dossier : votre {{.document_name}} n'a pas pu être validé.</p>
        {{if .comment}}<div class="card"><p>{{.comment}}</p></div>{{end}}
        <p>Merci de fournir un nouveau document.</p>
        {{if .dashboard_url}}<p style="text-align: center;"><a href="{{.dashboard_url}}" class="cta-button">Accéder à mon dossier</a></p>{{end}}
    </div>
{{end}}`

const rejectionText = `Bonjour,

Un agent a examiné votre dossier : votre {{.document_name}} n'a pas pu être validé.
{{if .comment}}Commentaire : {{.comment}}
{{end}}Merci de fournir un nouveau document.
{{if .dashboard_url}}
Accéder à mon dossier : {{.dashboard_url}}
{{end}}
Référence : {{.application_id}}
`

var emailTemplates = map[string]emailTemplate{
	models.TemplateApplicationSubmitted: {
		subject: texttemplate.Must(texttemplate.New("subject").Parse(`Candidature envoyée : {{.property_title}}`)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(submittedText)),
		html:    htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).Parse(submittedHTML)),
	},
	models.TemplateDocumentRejection: {
		subject: texttemplate.Must(texttemplate.New("subject").Parse(`Document refusé : {{.document_name}}`)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(rejectionText)),
		html:    htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).Parse(rejectionHTML)),
	},
}
