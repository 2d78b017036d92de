package server

import (
	"html/template"
	"net/http"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.AppName}}</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; }
textarea { width: 100%; height: 4rem; }
pre { background: #f4f4f4; padding: 1rem; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>{{.AppName}}</h1>
<form id="ask">
<textarea name="message" placeholder="Ask about your data"></textarea>
<button type="submit">Ask</button>
</form>
<pre id="out"></pre>
<script>
const app = {{.AppName}};
const user = "web";
let session = null;

async function ensureSession() {
  if (session) return session;
  const resp = await fetch("/apps/" + encodeURIComponent(app) + "/users/" + user + "/sessions", {method: "POST"});
  session = (await resp.json()).id;
  return session;
}

document.getElementById("ask").addEventListener("submit", async (e) => {
  e.preventDefault();
  const message = e.target.message.value;
  const out = document.getElementById("out");
  out.textContent = "...";
  const resp = await fetch("/run", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({app_name: app, user_id: user, session_id: await ensureSession(), message}),
  });
  out.textContent = JSON.stringify(await resp.json(), null, 2);
});
</script>
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, struct{ AppName string }{s.cfg.AppName}); err != nil {
		s.internalError(w, r, err)
	}
}
