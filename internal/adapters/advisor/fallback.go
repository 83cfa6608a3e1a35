package advisor

import (
	"fmt"
	"strings"
)

// keywordAnswers are checked in order against the user's question when no
// provider can answer.
var keywordAnswers = []struct {
	keyword string
	answer  string
}{
	{"火候", "🔥 一般来说:\n• 大火用于快速炒制和煮沸\n• 中火用于煎蛋和普通烹饪\n• 小火用于熬粥和慢炖\n\n如果不确定，从中火开始，根据情况调整。"},
	{"多久", "⏱️ 烹饪时间因食材和火力而异:\n• 煮蛋: 7-10分钟\n• 蒸蛋: 8-10分钟\n• 蒸玉米: 15-20分钟\n• 煮粥: 20-30分钟\n\n观察食物状态是最好的判断方式！"},
	{"替代", "🔄 常见替代:\n• 没有橄榄油 → 用植物油\n• 没有牛油果 → 用香蕉或鸡蛋\n• 没有燕麦 → 用小米或大米\n• 没有酸奶 → 用牛奶\n\n创意烹饪，灵活变通！"},
	{"熟", "✅ 判断熟度:\n• 鸡蛋: 蛋白凝固，蛋黄看个人喜好\n• 鸡肉: 切开无粉红色，肉汁清澈\n• 玉米: 颜色变深，有香气\n• 红薯: 筷子能轻松插入\n\n安全第一！"},
	{"失败", "💪 别灰心！烹饪是练习的过程:\n• 糊了 → 下次火小一点\n• 太淡 → 加点盐调味\n• 太咸 → 加点水或配着淡的食物吃\n\n每次失败都是进步的机会！"},
}

const genericAnswer = `🤔 这是个好问题！

一些通用建议:
1. 仔细阅读步骤，不着急
2. 提前准备好所有食材
3. 从简单的菜开始练习
4. 多尝试，不怕失败

如果有具体问题，欢迎继续问我！😊

提示: 配置 Perplexity 或 OpenAI API key 可以获得更智能的回答哦！`

// ingredientTips are answered locally without calling a provider.
var ingredientTips = map[string]string{
	"鸡蛋": "🥚 鸡蛋选购技巧:\n• 新鲜鸡蛋放水中会沉底\n• 壳面粗糙的更新鲜\n• 冷藏保存，大头朝上",
	"红薯": "🍠 红薯选购技巧:\n• 选择表皮光滑无斑点的\n• 中等大小的口感更好\n• 存放在阴凉通风处",
	"玉米": "🌽 玉米选购技巧:\n• 选择颗粒饱满的\n• 按压有弹性的更新鲜\n• 叶子青绿的更嫩",
}

func fallbackHelp(question string) string {
	q := strings.ToLower(question)
	for _, ka := range keywordAnswers {
		if strings.Contains(q, ka.keyword) {
			return ka.answer
		}
	}
	return genericAnswer
}

func fallbackStep(number int, text string) string {
	return fmt.Sprintf("📝 步骤 %d: %s\n\n💡 提示: 按照步骤操作，注意火候和时间。如需更详细帮助，请配置 API。", number, text)
}

func fallbackStepFailed(number int, text string) string {
	return fmt.Sprintf("📝 步骤 %d: %s\n\n抱歉，暂时无法获取详细解释。请按照步骤操作即可。", number, text)
}

func fallbackIngredient(name string) string {
	return fmt.Sprintf("💡 %s: 选择新鲜的，储存在适当条件下。", name)
}

func fallbackIngredientFailed(name string) string {
	return fmt.Sprintf("💡 %s: 选择新鲜的食材，注意保存条件。", name)
}
