package httpserver

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var homeTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Catálogo EAN</title></head>
<body>
<h1>Catálogo EAN</h1>
<p>{{.}}</p>
<form method="post" action="/api/auth/logout"><button type="submit">Sair</button></form>
</body>
</html>
`))

const loginHTML = `<!doctype html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Entrar</title></head>
<body>
<h1>Entrar</h1>
<form id="login">
<input name="username" placeholder="Usuário" autocomplete="username">
<input name="password" type="password" placeholder="Senha" autocomplete="current-password">
<button type="submit">Entrar</button>
</form>
</body>
</html>
`

func homePage(c echo.Context) error {
	name := ""
	if s := SessionFrom(c); s != nil {
		name = s.DisplayName
		if name == "" {
			name = s.Username
		}
	}

	var b strings.Builder
	if err := homeTmpl.Execute(&b, name); err != nil {
		return err
	}
	return c.HTML(http.StatusOK, b.String())
}

func loginPage(c echo.Context) error {
	return c.HTML(http.StatusOK, loginHTML)
}
