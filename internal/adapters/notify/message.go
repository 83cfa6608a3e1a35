// Package notify renders the daily breakfast reminder and delivers it over
// email and WhatsApp.
package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"

	"github.com/okian/breakfast/internal/domain/model"
)

// Message is a rendered reminder.
type Message struct {
	Date    model.Date
	Recipe  *model.Recipe
	Subject string
	Text    string
	HTML    string
}

const noMealText = "🍳 还没有确认明天的早餐！\n快去网站抽取一个吧！"

var funcs = map[string]any{
	"stars": func(n int) string { return strings.Repeat("⭐", n) },
	"num": func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

var textTmpl = template.Must(template.New("text").Funcs(funcs).Parse(`🍳 明日早餐提醒 🍳

📅 {{.Date}}

🥘 菜品: {{.Recipe.Name}} ({{.Recipe.NameEn}})
⏱️ 烹饪时间: {{.Recipe.CookingTime}} 分钟
📊 难度: {{stars .Recipe.Difficulty}}
{{with .Recipe.Nutrition}}
📊 营养信息:
  • 热量: {{.Calories}} kcal
  • 蛋白质: {{.Protein}}g
  • 碳水: {{.Carbohydrate}}g
  • 脂肪: {{.Fat}}g
{{end}}
🛒 准备食材:
{{range .Recipe.Ingredients}}  • {{.Name}} - {{num .Quantity}} {{.Unit}}
{{end}}
祝你明天早餐愉快！🌟
`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap(funcs)).Parse(`<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; text-align: center;">
    <h1>🍳 明日早餐提醒</h1>
    <p>{{.Date}}</p>
  </div>
{{with .Recipe}}
  <div style="padding: 20px; background: #f8f9fa; border-radius: 10px; margin-top: 20px;">
    <h2 style="color: #333;">{{.Name}}</h2>
    <p style="color: #888;">{{.NameEn}}</p>
    <div style="display: flex; gap: 20px; margin: 15px 0;">
      <span>⏱️ {{.CookingTime}} 分钟</span>
      <span>📊 难度 {{stars .Difficulty}}</span>
    </div>
    <h3>🛒 准备食材</h3>
    <ul>
{{range .Ingredients}}      <li>{{.Name}} - {{num .Quantity}} {{.Unit}}</li>
{{end}}    </ul>
{{with .Nutrition}}    <h3>📊 营养信息</h3>
    <p>热量: {{.Calories}} kcal | 蛋白质: {{.Protein}}g | 碳水: {{.Carbohydrate}}g</p>
{{end}}  </div>
{{else}}
  <p style="text-align: center; padding: 40px;">还没有确认明天的早餐！<br>快去网站抽取一个吧！</p>
{{end}}
  <p style="text-align: center; color: #888; margin-top: 20px;">祝你明天早餐愉快！🌟</p>
</body>
</html>
`))

// Compose renders the reminder for date. r is nil when nothing has been
// confirmed yet.
func Compose(date model.Date, r *model.Recipe) (Message, error) {
	msg := Message{Date: date, Recipe: r}
	data := struct {
		Date   model.Date
		Recipe *model.Recipe
	}{date, r}

	if r == nil {
		msg.Subject = "🍳 明日早餐提醒 - 快去选择吧"
		msg.Text = noMealText
	} else {
		msg.Subject = "🍳 明日早餐提醒 - " + r.Name
		var b bytes.Buffer
		if err := textTmpl.Execute(&b, data); err != nil {
			return Message{}, err
		}
		msg.Text = b.String()
	}

	var h bytes.Buffer
	if err := htmlTmpl.Execute(&h, data); err != nil {
		return Message{}, err
	}
	msg.HTML = h.String()
	return msg, nil
}
