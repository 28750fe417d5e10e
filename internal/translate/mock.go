package translate

import "context"

// Mock translates from a fixed dictionary keyed by target language and
// falls back to a "[lang] text" prefix.
type Mock struct {
	dictionary map[string]map[string]string
}

func NewMock(dictionary map[string]map[string]string) *Mock {
	if dictionary == nil {
		dictionary = map[string]map[string]string{
			"en": {
				"Hola":                    "Hello",
				"Hola, ¿cómo está usted?": "Hello, how are you?",
				"Me duele la cabeza.":     "My head hurts.",
			},
			"es": {
				"Hello":                "Hola",
				"How are you feeling?": "¿Cómo se siente?",
				"My head hurts.":       "Me duele la cabeza.",
			},
		}
	}
	return &Mock{dictionary: dictionary}
}

func (m *Mock) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if byText, ok := m.dictionary[targetLanguage]; ok {
		if translated, ok := byText[text]; ok {
			return translated, nil
		}
	}
	return "[" + targetLanguage + "] " + text, nil
}
