// page.go
package web

import (
	"bytes"
	"html/template"
	"net/http"

	"TitanicExplorer/src/processor"
	"TitanicExplorer/src/render"
	"TitanicExplorer/src/utils"
)

// 页面中的固定说明文字
const (
	Introduction = `This application explores the factors affecting survival rates on the Titanic.
The dataset used for this analysis is the Titanic dataset from Kaggle.
The purpose of this exploration is to uncover insights into the factors that influenced passengers' survival on the Titanic,
such as their class, gender, age, and fare paid.`

	ConclusionIntro = "From the analysis of the Titanic dataset, several factors stood out as having a significant impact on survival:"
	ConclusionOutro = "These findings align with the historical accounts of the Titanic tragedy, where women, children, and the wealthy were given priority in lifeboats."
)

// Conclusions 结论要点
var Conclusions = []struct{ Factor, Finding string }{
	{"Class", "Passengers in the first class had a higher survival rate compared to those in the third class."},
	{"Gender", "Females were more likely to survive than males."},
	{"Age", "Younger passengers had higher survival rates."},
	{"Fare", "Passengers who paid higher fares tended to have better survival rates."},
}

type classOption struct {
	Value   int
	Checked bool
}

type kindOption struct {
	Kind     processor.Kind
	Label    string
	Selected bool
}

type pageData struct {
	Bounds      Bounds
	Query       Query
	QueryString template.URL // 已编码的查询字符串
	Classes     []classOption
	Kinds       []kindOption
	Headers     []string
	Rows        [][]string
	Total       int
	Caption     string
	Intro       string
	ConclIntro  string
	Conclusions []struct{ Factor, Finding string }
	ConclOutro  string
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Titanic Data Exploration App</title>
<style>
body { background-color: #E0F7FA; color: #2F4F4F; font-family: Arial, sans-serif; margin: 0 auto; max-width: 1000px; padding: 16px; }
.title-box { background-color: #002147; color: white; padding: 20px; border-radius: 5px; text-align: center; font-size: 36px; }
h2 { color: #001f3f; }
form { display: flex; gap: 24px; flex-wrap: wrap; align-items: flex-end; }
button { background-color: #001f3f; color: #FFFFFF; border: 0; padding: 8px 16px; border-radius: 4px; }
.table-wrap { max-height: 400px; overflow: auto; background: white; }
table { border-collapse: collapse; width: 100%; font-size: 13px; }
th { background: #001f3f; color: white; position: sticky; top: 0; }
td, th { padding: 4px 8px; border-bottom: 1px solid #ddd; text-align: right; }
iframe { border: 0; width: 100%; height: 540px; background: white; }
</style>
</head>
<body>
<div class="title-box">Titanic Data Exploration App</div>

<h2>Introduction</h2>
<p>{{.Intro}}</p>

<h2>Filter the Data</h2>
<form method="get" action="/">
  <input type="hidden" name="filtered" value="1">
  <label>Age from
    <input type="number" name="age_lo" min="{{.Bounds.AgeMin}}" max="{{.Bounds.AgeMax}}" value="{{.Query.Selection.AgeLo}}">
  </label>
  <label>to
    <input type="number" name="age_hi" min="{{.Bounds.AgeMin}}" max="{{.Bounds.AgeMax}}" value="{{.Query.Selection.AgeHi}}">
  </label>
  <fieldset>
    <legend>Passenger Class</legend>
    {{range .Classes}}<label><input type="checkbox" name="class" value="{{.Value}}"{{if .Checked}} checked{{end}}> {{.Value}}</label> {{end}}
  </fieldset>
  <label>Visualization
    <select name="kind">
      {{range .Kinds}}<option value="{{.Kind}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
    </select>
  </label>
  <button type="submit">Apply</button>
</form>

<h2>Filtered Data</h2>
<p>{{.Total}} of {{.Bounds.Rows}} passengers{{if lt (len .Rows) .Total}}, showing the first {{len .Rows}}{{end}}.</p>
<div class="table-wrap">
<table>
  <tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
  {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
</table>
</div>

<h2>Visualizations</h2>
<iframe src="/chart.html?{{.QueryString}}" title="chart"></iframe>
<p>{{.Caption}}</p>
<p><a href="/chart.png?{{.QueryString}}">PNG</a> · <a href="/export.xlsx?{{.QueryString}}">Excel</a> · <a href="/api/chart?{{.QueryString}}">JSON</a></p>

<h2>Conclusion</h2>
<p>{{.ConclIntro}}</p>
<ul>
{{range .Conclusions}}<li><strong>{{.Factor}}</strong>: {{.Finding}}</li>
{{end}}</ul>
<p>{{.ConclOutro}}</p>
</body>
</html>
`))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := pageData{
		Bounds:      s.bounds(res.dataset),
		Query:       res.query,
		QueryString: template.URL(res.query.Encode()),
		Headers:     render.Headers(res.view),
		Rows:        render.Rows(res.view, s.cfg.Server.TableLimit),
		Total:       res.view.Nrow(),
		Caption:     res.chart.Info().Caption,
		Intro:       Introduction,
		ConclIntro:  ConclusionIntro,
		Conclusions: Conclusions,
		ConclOutro:  ConclusionOutro,
	}
	for _, c := range processor.ValidClasses {
		data.Classes = append(data.Classes, classOption{Value: c, Checked: utils.Contains(res.query.Selection.Classes, c)})
	}
	for _, k := range processor.Kinds() {
		data.Kinds = append(data.Kinds, kindOption{Kind: k, Label: k.Label(), Selected: k == res.query.Kind})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
