package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/run"
)

// indexTemplate 是内置的提交页面，方便不借助 API 客户端发起运行。
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Codebase Documentation Crew</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 56rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
input[type=text] { width: 24rem; }
.status-succeeded { color: green; }
.status-failed { color: #b00; }
</style>
</head>
<body>
<h1>Codebase Documentation Crew</h1>
<form method="post" action="/">
  <p><label>Repository path <input type="text" name="repo_path" placeholder="/path/to/repo" required></label></p>
  <p><label>File label <input type="text" name="file_label" value="code_documentation"></label></p>
  <p><button type="submit">Generate documentation</button></p>
</form>
{{if .Error}}<p style="color:#b00">{{.Error}}</p>{{end}}
<h2>Recent runs</h2>
<table>
<tr><th>ID</th><th>Repository</th><th>Status</th><th>Attempts</th><th>Document</th></tr>
{{range .Runs}}
<tr>
  <td>{{.ID}}</td>
  <td>{{.RepoPath}}</td>
  <td class="status-{{.Status}}">{{.Status}}</td>
  <td>{{.Attempts}}/{{.MaxRetries}}</td>
  <td>{{if .Result}}{{.Result.DocumentPath}}{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

type indexData struct {
	Runs  []*run.Run
	Error string
}

// handleIndex 渲染提交页面并处理表单提交。
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := indexData{}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if s.service == nil {
			http.Error(w, "运行服务未初始化", http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "表单解析失败", http.StatusBadRequest)
			return
		}
		req := run.SubmitRequest{
			RepoPath:  strings.TrimSpace(r.PostFormValue("repo_path")),
			FileLabel: strings.TrimSpace(r.PostFormValue("file_label")),
		}
		if _, err := s.service.Submit(r.Context(), req); err != nil {
			data.Error = err.Error()
		} else {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
		return
	}

	if s.service != nil {
		if runs, err := s.service.List(r.Context(), run.WithLimit(20)); err == nil {
			data.Runs = runs
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTemplate.Execute(w, data)
}
