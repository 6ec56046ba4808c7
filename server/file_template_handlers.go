package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplates parses every page in the embedded filesystem
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "*.html")
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	data["AppName"] = s.config.GetAppName()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("page", name).Msg("rendering page failed")
	}
}
