package web

import "html/template"

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>FinHub</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 900px; margin: 40px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		h2 { border-bottom: 1px solid #374151; padding-bottom: 6px; }
		table { border-collapse: collapse; width: 100%; margin: 10px 0; }
		th, td { border: 1px solid #374151; padding: 6px 10px; text-align: left; font-size: 14px; }
		code { background: #374151; padding: 2px 6px; border-radius: 4px; color: #fbbf24; }
		a { color: #60a5fa; }
		.error { color: #f87171; }
		.topbar { display: flex; justify-content: space-between; }
	</style>
</head>
<body>
	<div class="topbar">
		<h1>FinHub</h1>
		<form method="POST" action="/logout"><button type="submit">Log out</button></form>
	</div>
	{{if .Flash}}<p class="error">{{.Flash}}</p>{{end}}

	<h2>Connected</h2>
	{{if not .Blocks}}<p>No providers connected yet.</p>{{end}}
	{{range .Blocks}}
	<h3>{{.Name}} <a href="/disconnect/{{.ID}}">[disconnect]</a></h3>
	{{if .Err}}
	<p class="error">{{.Err}}</p>
	{{else}}
	<table>
		<tr><th>Account</th><th>Balance</th><th>Product</th></tr>
		{{range .Rows}}
		<tr>
			<td><code>{{.AccountID}}</code></td>
			<td>{{if .BalanceErr}}<span class="error">{{.BalanceErr}}</span>{{else}}{{.Balance}}{{end}}</td>
			<td>{{if .ProductErr}}<span class="error">{{.ProductErr}}</span>{{else}}{{.Product}}{{end}}</td>
		</tr>
		{{end}}
	</table>
	{{end}}
	{{end}}

	<h2>Available to connect</h2>
	{{if not .Connectable}}<p>All registered providers are connected.</p>{{end}}
	<ul>
	{{range .Connectable}}
		<li>{{.Name}} — <a href="/connect/{{.ID}}">connect</a></li>
	{{end}}
	</ul>
</body>
</html>`))

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>FinHub — Log in</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 360px; margin: 80px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		input { width: 100%; padding: 8px; margin: 6px 0; box-sizing: border-box; }
		.error { color: #f87171; }
	</style>
</head>
<body>
	<h1>Log in</h1>
	{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
	<form method="POST" action="/login">
		<input type="email" name="email" placeholder="Email" required>
		<input type="password" name="password" placeholder="Password" required>
		<button type="submit">Log in</button>
	</form>
</body>
</html>`))
