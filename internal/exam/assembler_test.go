package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examgen/backend/internal/storage/models"
)

func validRequest() PaperRequest {
	return PaperRequest{
		Heading:    "Physics Midterm",
		Topic:      "thermodynamics",
		TotalMarks: 13,
		Specs: []models.QuestionSpec{
			{Type: models.TypeMCQ, Count: 3, Difficulty: models.DifficultyEasy, MarksEach: 1},
			{Type: models.TypeSAQ, Count: 2, Difficulty: models.DifficultyMedium, MarksEach: 5},
		},
	}
}

func TestPaperRequestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Validate())

	cases := []struct {
		name   string
		mutate func(*PaperRequest)
		want   string
	}{
		{"no specs", func(r *PaperRequest) { r.Specs = nil }, "no question specs"},
		{"unknown type", func(r *PaperRequest) { r.Specs[0].Type = "TrueFalse" }, "unknown question type"},
		{"unknown difficulty", func(r *PaperRequest) { r.Specs[0].Difficulty = "brutal" }, "unknown difficulty"},
		{"negative count", func(r *PaperRequest) { r.Specs[0].Count = -1 }, "negative count"},
		{"zero marks", func(r *PaperRequest) { r.Specs[0].MarksEach = 0 }, "must be positive"},
		{"marks mismatch", func(r *PaperRequest) { r.TotalMarks = 20 }, "do not match"},
		{"zero questions", func(r *PaperRequest) {
			r.Specs[0].Count = 0
			r.Specs[1].Count = 0
			r.TotalMarks = 0
		}, "zero questions"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestAssembleGroupsAndSums(t *testing.T) {
	questions := []models.Question{
		{Type: models.TypeSAQ, Prompt: "s1", Marks: 5},
		{Type: models.TypeMCQ, Prompt: "m1", Marks: 1},
		{Type: models.TypeSAQ, Prompt: "s2", Marks: 5},
		{Type: models.TypeMCQ, Prompt: "m2", Marks: 1},
		{Type: models.TypeMCQ, Prompt: "m3", Marks: 1},
	}

	paper := Assemble(validRequest(), questions, false)

	require.Len(t, paper.Questions, 5)
	var order []models.QuestionType
	for _, q := range paper.Questions {
		order = append(order, q.Type)
	}
	assert.Equal(t, []models.QuestionType{
		models.TypeMCQ, models.TypeMCQ, models.TypeMCQ,
		models.TypeSAQ, models.TypeSAQ,
	}, order)

	assert.Equal(t, 13, paper.TotalMarks)
	assert.Equal(t, 13, paper.RequestedMarks)
	assert.True(t, paper.Complete)
	assert.True(t, paper.ContentBased)
	assert.False(t, paper.ReusedContext)
	assert.NotEmpty(t, paper.ID)
	assert.Equal(t, "Physics Midterm", paper.Heading)
}

func TestAssembleIncompletePaper(t *testing.T) {
	// Two of the five requested questions failed; the paper ships anyway
	// with the literal sum of what succeeded.
	questions := []models.Question{
		{Type: models.TypeMCQ, Prompt: "m1", Marks: 1},
		{Type: models.TypeMCQ, Prompt: "m2", Marks: 1},
		{Type: models.TypeSAQ, Prompt: "s1", Marks: 5},
	}

	paper := Assemble(validRequest(), questions, true)

	assert.Len(t, paper.Questions, 3)
	assert.Equal(t, 7, paper.TotalMarks)
	assert.Equal(t, 13, paper.RequestedMarks)
	assert.False(t, paper.Complete)
	assert.True(t, paper.ReusedContext)
}

func TestAssembleDefaultHeading(t *testing.T) {
	req := validRequest()
	req.Heading = "   "
	paper := Assemble(req, []models.Question{{Type: models.TypeMCQ, Marks: 1}}, false)
	assert.Equal(t, "Examination Paper", paper.Heading)
}

func TestLatestCellSupersede(t *testing.T) {
	cell := NewLatestCell()
	assert.Nil(t, cell.Get())

	first := &models.Paper{ID: "first"}
	second := &models.Paper{ID: "second"}

	cell.Set(first)
	assert.Equal(t, "first", cell.Get().ID)

	cell.Set(second)
	assert.Equal(t, "second", cell.Get().ID, "later paper replaces the earlier one")
}
