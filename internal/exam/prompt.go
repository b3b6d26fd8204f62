package exam

import (
	"fmt"
	"strings"
)

// levelKey identifies an entry in the achievement-rule table.
type levelKey struct {
	subject    string
	difficulty string
}

// achievementRules holds per-subject, per-difficulty instruction blocks.
// The table is fixed; subjects without an entry get genericRule.
var achievementRules = map[levelKey]string{
	{"수학", DifficultyLow}:    "성취기준의 기본 개념을 직접 적용하는 한 단계 계산 문제로 출제한다. 숫자는 작고 깔끔하게 떨어지도록 한다.",
	{"수학", DifficultyMedium}: "두 단계 이상의 풀이 과정이 필요한 문제로 출제한다. 분수와 소수를 섞어 계산 능력을 확인한다.",
	{"수학", DifficultyHigh}:   "여러 성취기준을 통합해야 풀 수 있는 서술형 심화 문제를 포함한다. 실생활 맥락을 담은 문장제로 구성한다.",
	{"과학", DifficultyLow}:    "교과서의 핵심 용어와 현상을 확인하는 문제로 출제한다.",
	{"과학", DifficultyMedium}: "실험 과정과 결과를 해석하게 하는 문제로 출제한다.",
	{"과학", DifficultyHigh}:   "탐구 설계와 근거 제시를 요구하는 서술형 문제를 포함한다.",
	{"국어", DifficultyLow}:    "지문의 중심 내용을 직접 찾는 문제로 출제한다.",
	{"국어", DifficultyMedium}: "지문 내 정보를 비교·추론하는 문제로 출제한다.",
	{"국어", DifficultyHigh}:   "지문을 근거로 자신의 생각을 서술하게 하는 문제를 포함한다.",
}

const genericRule = "선택한 단원의 성취기준에 맞추어 해당 난이도에 적절한 문제를 출제한다."

// BuildPrompt renders the upstream prompt for a validated request.
// Deterministic: the same request always yields the same string.
func BuildPrompt(req GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "당신은 %s 과목의 시험 문제 출제 전문가입니다.\n", req.Subject)
	fmt.Fprintf(&b, "난이도: %s\n", req.Difficulty)
	fmt.Fprintf(&b, "객관식 %d문제, 주관식 %d문제를 출제하세요.\n\n", req.MultipleChoiceCount, req.SubjectiveCount)

	writeItems(&b, "출제 단원", req.Units)
	writeItems(&b, "세부 단원", req.SubUnits)
	writeItems(&b, "문제 유형", req.QuestionTypes)

	rule, ok := achievementRules[levelKey{req.Subject, req.Difficulty}]
	if !ok {
		rule = genericRule
	}
	b.WriteString("\n[성취수준 기준]\n")
	b.WriteString(rule)
	b.WriteString("\n")

	b.WriteString(`
[출력 형식]
- 객관식 문제는 1. 2. 3. 순서로 번호를 붙이고, 보기는 ① ② ③ ④ 기호를 사용한다.
- 주관식 문제는 객관식 다음 번호부터 이어서 붙인다.
- LaTeX 등 수식 마크업 표기를 절대 사용하지 않는다.
- 곱셈은 ×, 나눗셈은 ÷, 분수는 / 기호를 그대로 쓴다. \times, \div, \frac 같은 명령어를 쓰지 않는다.
- 문제 텍스트만 출력하고 다른 설명을 붙이지 않는다.`)

	return b.String()
}

func writeItems(b *strings.Builder, heading string, items []Item) {
	if len(items) == 0 {
		return
	}
	labels := make([]string, 0, len(items))
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	fmt.Fprintf(b, "%s: %s\n", heading, strings.Join(labels, ", "))
}
