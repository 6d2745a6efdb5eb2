package generator

import "fmt"

const promptTemplate = `Generate exactly %d quiz questions: %d multiple-choice and %d true/false, from the following educational content.
The questions should align with Bloom's Taxonomy.

Each question must:
- Be original and unambiguous
- Test critical thinking skills appropriate for the level
- Cover key concepts without being overly simplistic
- Be challenging but fair for students
- Avoid trick questions or ambiguous wording
- Be grammatically correct and clearly written

Question structure:
- Multiple-choice questions have exactly 4 answer options
- True/false questions have exactly the options "True" and "False"
- Exactly one option is correct
- "correctOption" is the zero-based index of the correct option (0=A, 1=B, 2=C, 3=D; 0=True, 1=False)
- "questionType" is "MULTIPLE_CHOICE" or "TRUE_FALSE"

### Content:
%s

### Output format (a JSON array and nothing else):
[
  {
    "question": "What is X?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctOption": 0,
    "questionType": "MULTIPLE_CHOICE"
  },
  {
    "question": "Is Y true?",
    "options": ["True", "False"],
    "correctOption": 0,
    "questionType": "TRUE_FALSE"
  }
]
`

func buildPrompt(context string, plan batchPlan) string {
	return fmt.Sprintf(promptTemplate, plan.Total, plan.MCQ, plan.TF, context)
}
