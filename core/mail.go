package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/gabrielfriasw/srf-escolas-sub000/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent and HTMLContent from the message's template (or BodyStr).
func (m *EmailMessage) Render(appName string) error {
	if m.TemplateName != "" {
		tmplInit.Do(func() { templates, tmplErr = parseTemplates(appfs.FS) }) // only parse once
		if tmplErr != nil {
			return tmplErr
		}
		if _, ok := templates[m.TemplateName]; !ok {
			return errors.Errorf("email template %q not found", m.TemplateName)
		}
	}
	data := ContextData{AppName: appName, Data: m.TemplateData}
	if err := m.renderText(data); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	return errors.Wrap(m.renderHTML(data), "rendering html content")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func parseTemplates(fsys fs.FS) (tmplCache, error) {
	cache := make(tmplCache)

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = make(tmplCacheEntry)
			cache[name] = entry
		}
		base := path.Join(emailTemplatesDir, "_base"+ext)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			entry[ext] = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, base, fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			entry[ext] = tmpl.Option("missingkey=error")
		}
	}
	return cache, nil
}
