package quiz

import (
	"fmt"
	"unicode/utf8"
)

// SystemPrompt fixes the language and output format of the generator.
const SystemPrompt = "Você é um gerador de questionários em português do Brasil. Responda APENAS JSON válido."

// BuildPrompt asks for n questions about text.
func BuildPrompt(text string, n int) string {
	return fmt.Sprintf(`Gere %d questões de múltipla escolha sobre o texto abaixo.

Regras:
- Cada questão deve ter exatamente %d alternativas.
- Apenas uma alternativa correta, indicada em "answer_index" (0 a %d).
- Varie a posição da alternativa correta; não use 0 em todas as questões.
- As alternativas incorretas devem ser plausíveis e ter tamanho parecido com a correta.
- Não marque a alternativa correta no texto das alternativas.

Formato da resposta:
{"questions":[{"text":"...","choices":["...","...","...","...","..."],"answer_index":0}]}

Texto original:
%s`, n, ChoiceCount, ChoiceCount-1, text)
}

// Truncate limits text to maxChars runes. maxChars <= 0 disables the limit.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := 0
	for i := range text {
		if runes == maxChars {
			return text[:i]
		}
		runes++
	}
	return text
}
