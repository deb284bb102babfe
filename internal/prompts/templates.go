// Package prompts holds the Portuguese prompt templates for both
// responders. The knowledge template embeds retrieved passages verbatim
// and instructs the model to answer only from them.
package prompts

import (
	"fmt"
	"strings"

	"github.com/vbastos/chat-infinite/internal/rag"
)

// NoInfoResponse is the canned answer streamed when retrieval finds no
// relevant passages. The generative service is not called in that case.
const NoInfoResponse = "Desculpe, não encontrei informações relevantes na minha base de conhecimento sobre essa pergunta. Posso ajudar com outras dúvidas sobre InfinitePay?"

const emptyContext = "Não foram encontrados documentos relevantes na base de conhecimento."

const knowledgeTemplate = `Você é um assistente virtual amigável e prestativo da InfinitePay! Seu objetivo é ajudar os clientes com suas dúvidas de forma clara, objetiva e acolhedora.

PERGUNTA DO CLIENTE: %s

INFORMAÇÕES DISPONÍVEIS PARA RESPONDER:
%s

INSTRUÇÕES CRÍTICAS:
- As informações acima contêm a resposta para a pergunta do cliente
- Use EXCLUSIVAMENTE essas informações para construir sua resposta e todo o contexto relacionado
- NÃO repita ou parafraseie a pergunta do cliente
- Se há passos numerados ou instruções no contexto, organize-os claramente na resposta
- Seja completo e detalhado quando as informações estão disponíveis
- Seja sempre simpático e use uma linguagem acessível
- Use emojis quando apropriado para deixar a conversa mais amigável
- Não mencione "documentos", "fontes" ou "base de conhecimento"
- APENAS se não houver informação relevante responda: "Não tenho essa informação específica no momento."
- Sempre termine oferecendo ajuda adicional

Baseado nas informações fornecidas acima, responda de forma completa e amigável:`

const mathTemplate = `Você é um especialista em matemática. Resolva a pergunta abaixo de forma clara e precisa.

PERGUNTA: %s

INSTRUÇÕES:
- Calcule corretamente e mostre o resultado final
- Explique brevemente os passos principais
- Use símbolos matemáticos quando necessário
- Escreva em português brasileiro
- Destaque a resposta final claramente

RESPOSTA:`

// BuildKnowledgePrompt renders the grounded-answer prompt, embedding each
// passage with its source URL and title.
func BuildKnowledgePrompt(query string, passages []rag.ScoredPassage) string {
	context := emptyContext
	if len(passages) > 0 {
		parts := make([]string, 0, len(passages))
		for _, p := range passages {
			parts = append(parts, fmt.Sprintf("%s - %s\n\n%s\n", p.SourceURL, p.Title, p.Text))
		}
		context = strings.Join(parts, "\n")
	}
	return fmt.Sprintf(knowledgeTemplate, query, context)
}

// BuildMathPrompt renders the calculation prompt.
func BuildMathPrompt(query string) string {
	return fmt.Sprintf(mathTemplate, query)
}
