package intake

import (
	"fmt"
	"strings"
)

// Field 是创建报价前必须收集的信息项。
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldService Field = "service"
)

var fieldLabels = map[Field]string{
	FieldName:    "**your name**",
	FieldEmail:   "**your email address**",
	FieldService: "**which service you need** (logo design, website, social media, etc.)",
}

// ConfirmationPrompt 在信息齐全但用户尚未确认时发送。
const ConfirmationPrompt = "I have all the details for your quote. Should I go ahead and create it for you? " +
	"Just say **'yes'** or **'create the quote'** to confirm!"

// Evaluation 是报价就绪判断的结果。
type Evaluation struct {
	Ready             bool
	Missing           []Field
	NeedsConfirmation bool
	Prompt            string
}

// Evaluate 判断会话是否可以创建报价；未就绪时给出下一步要向用户追问的内容。
// 缺失项固定按 姓名、邮箱、服务 的顺序给出。
func Evaluate(s Snapshot, in Intent) Evaluation {
	var missing []Field
	if s.Name == "" {
		missing = append(missing, FieldName)
	}
	if s.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if len(s.Services) == 0 && len(in.Services) == 0 {
		missing = append(missing, FieldService)
	}

	switch {
	case len(missing) > 0:
		return Evaluation{Missing: missing, Prompt: MissingPrompt(missing)}
	case !s.Confirmed:
		return Evaluation{NeedsConfirmation: true, Prompt: ConfirmationPrompt}
	default:
		return Evaluation{Ready: true}
	}
}

// MissingPrompt 根据缺失项数量生成追问文案，三项及以上使用牛津逗号。
func MissingPrompt(missing []Field) string {
	items := make([]string, len(missing))
	for i, f := range missing {
		items[i] = fieldLabels[f]
	}
	switch len(items) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("To create your quote, I just need %s. Could you please provide that?", items[0])
	case 2:
		return fmt.Sprintf("To create your quote, I need %s and %s. Could you please provide those details?", items[0], items[1])
	default:
		list := strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
		return fmt.Sprintf("To create your quote, I need %s. Could you please provide those details?", list)
	}
}
