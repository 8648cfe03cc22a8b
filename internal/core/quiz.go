package core

type QuizQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// PersonalityQuiz returns the fixed question set. Answers land in the user's
// personality profile keyed by question id.
func PersonalityQuiz() []QuizQuestion {
	return []QuizQuestion{
		{
			ID:       "communication",
			Question: "How do you prefer to communicate?",
			Options:  []string{"Direct and concise", "Friendly and detailed", "Casual and fun", "Formal and structured"},
		},
		{
			ID:       "motivation",
			Question: "What motivates you most?",
			Options:  []string{"Achievement and success", "Learning and growth", "Helping others", "Creative expression"},
		},
		{
			ID:       "stress",
			Question: "How do you handle stress?",
			Options:  []string{"Take action immediately", "Think it through carefully", "Talk to someone", "Take time alone to process"},
		},
		{
			ID:       "work_style",
			Question: "What's your ideal work style?",
			Options:  []string{"Structured with clear deadlines", "Flexible with creative freedom", "Collaborative with others", "Independent with minimal supervision"},
		},
		{
			ID:       "goals",
			Question: "How do you approach goals?",
			Options:  []string{"Break them into small steps", "Focus on the big picture", "Set ambitious targets", "Keep them flexible and adaptable"},
		},
	}
}
