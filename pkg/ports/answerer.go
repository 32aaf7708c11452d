package ports

import "context"

// FieldKind is the input type of an application form field.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldSelect FieldKind = "select"
	FieldRadio  FieldKind = "radio"
)

// Field describes one question discovered in an application form.
type Field struct {
	Label   string
	Kind    FieldKind
	Options []string
	Current string
}

// FieldAnswerer produces an answer for a form field. It may fail; callers
// fill the field with an error marker instead of aborting.
type FieldAnswerer interface {
	Answer(ctx context.Context, field Field) (string, error)
}

// AnswerFunc adapts a plain function to FieldAnswerer.
type AnswerFunc func(ctx context.Context, field Field) (string, error)

func (f AnswerFunc) Answer(ctx context.Context, field Field) (string, error) {
	return f(ctx, field)
}
