// Package flow implements the funnel state machine: the ordered question
// sequence, conditional branching, and the disqualification rule evaluator.
package flow

import "github.com/jonesrussell/quiz-funnel/internal/domain"

// Question and contact field ids. The ids double as webhook payload keys.
const (
	QuestionArea          = "area"
	QuestionFrequencia    = "frequencia"
	QuestionFamiliaridade = "familiaridade"
	QuestionFaturamento   = "faturamento"
	QuestionInvestimento  = "investimento"

	FieldAreaOutra = "areaOutra"
	FieldNome      = "nome"
	FieldEmail     = "email"
	FieldTelefone  = "telefone"
	FieldBlogLink  = "blogLink"
)

// Designated answers on the role question.
const (
	// AnswerOther requires the areaOutra free-text detail before the flow
	// may advance.
	AnswerOther = "Outro(a)"
	// AnswerNotStarted skips the publishing-frequency question.
	AnswerNotStarted = "Ainda não comecei a publicar"
	// AnswerDormant disqualifies immediately, bypassing all later questions.
	AnswerDormant = "Não atuo com conteúdo no momento"
)

// DefaultQuestions returns the funnel's ordered question definitions.
func DefaultQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:    QuestionArea,
			Title: "Em qual destas áreas você atua atualmente?",
			Options: []string{
				"Profissional de SEO",
				"Redator(a) ou criador de conteúdo",
				"Dono(a) de blog ou portal de notícias",
				"Agência de marketing ou publicidade",
				"Empresário ou gestor de marketing",
				AnswerNotStarted,
				AnswerDormant,
				AnswerOther,
			},
		},
		{
			ID:    QuestionFrequencia,
			Title: "Com que frequência você publica artigos ou conteúdos no seu site/blog?",
			Options: []string{
				"Público com frequência (mais de 15/mês)",
				"Publico de vez em quando (2 a 6/mês)",
				"Estou planejando começar",
				"Não publico, mas quero automatizar isso",
				"Não publico e não tenho planos",
			},
		},
		{
			ID:    QuestionFamiliaridade,
			Title: "Qual o seu nível de familiaridade com ferramentas de IA para criação de conteúdo?",
			Options: []string{
				"Já uso e quero escalar",
				"Conheço, mas nunca usei",
				"Nunca ouvi falar, mas tenho interesse",
				"Não tenho interesse",
			},
		},
		{
			ID:    QuestionFaturamento,
			Title: "Quanto você fatura com seu blog ou site atualmente?",
			Options: []string{
				"Não faturo",
				"De R$ 1 a R$ 500",
				"De R$ 500 a R$ 2.000",
				"De R$ 2.000 a R$ 5.000",
				"De R$ 5.000 a R$ 10.000",
				"Acima de R$ 10.000",
			},
		},
		{
			ID:    QuestionInvestimento,
			Title: "Se a ferramenta se pagar, você estaria disposto(a) a investir nela?",
			Options: []string{
				"Sim",
				"Talvez",
				"Não",
			},
		},
	}
}

// DefaultBranches returns the conditional branch rules of the role question.
func DefaultBranches() []domain.BranchRule {
	return []domain.BranchRule{
		{
			QuestionID:     QuestionArea,
			Answer:         AnswerNotStarted,
			SkipQuestionID: QuestionFrequencia,
		},
		{
			QuestionID: QuestionArea,
			Answer:     AnswerDormant,
			Disqualify: true,
		},
	}
}

// DefaultRules returns the disqualification rule table in declaration order.
func DefaultRules() []domain.DisqualificationRule {
	return []domain.DisqualificationRule{
		{
			Field:   QuestionArea,
			Answers: []string{AnswerDormant},
		},
		{
			Field: QuestionFrequencia,
			Answers: []string{
				"Não publico, mas quero automatizar isso",
				"Não publico e não tenho planos",
				"Estou planejando começar",
			},
		},
		{
			Field:   QuestionFamiliaridade,
			Answers: []string{"Não tenho interesse"},
		},
		{
			Field:   QuestionFaturamento,
			Answers: []string{"Não faturo"},
		},
		{
			Field:   QuestionInvestimento,
			Answers: []string{"Não"},
		},
	}
}
