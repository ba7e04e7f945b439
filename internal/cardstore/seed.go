package cardstore

import (
	"time"

	"github.com/starford/mdmemo/internal/models"
	"github.com/starford/mdmemo/internal/scheduler"
)

const reactSample = "# React\n\n" +
	"React is a JavaScript library for building user interfaces.\n\n" +
	"## Key ideas\n\n" +
	"- Components are functions of props and state.\n" +
	"- Rendering is declarative; React reconciles the DOM.\n" +
	"- Hooks such as `useState` and `useEffect` manage state and side effects.\n\n" +
	"```jsx\n" +
	"function Counter() {\n" +
	"  const [count, setCount] = useState(0);\n" +
	"  return <button onClick={() => setCount(count + 1)}>{count}</button>;\n" +
	"}\n" +
	"```\n"

const typeScriptSample = "# TypeScript\n\n" +
	"TypeScript is JavaScript with a static type system.\n\n" +
	"## Key ideas\n\n" +
	"- Types are erased at compile time.\n" +
	"- Structural typing: shapes matter, names do not.\n" +
	"- Union types and narrowing model values that vary.\n\n" +
	"```ts\n" +
	"type Result = { ok: true; value: number } | { ok: false; error: string };\n\n" +
	"function unwrap(r: Result): number {\n" +
	"  if (r.ok) return r.value;\n" +
	"  throw new Error(r.error);\n" +
	"}\n" +
	"```\n"

// SampleCards returns the cards an empty store is seeded with.
func SampleCards(now time.Time) []models.Card {
	return []models.Card{
		{
			ID:             "sample-1",
			Title:          "React",
			Content:        reactSample,
			Tags:           []string{"JavaScript", "frontend", "library"},
			CreatedAt:      now,
			UpdatedAt:      now,
			Status:         models.StatusMemo,
			EaseFactor:     scheduler.DefaultEaseFactor,
			RelatedCardIDs: []string{},
		},
		{
			ID:             "sample-2",
			Title:          "TypeScript",
			Content:        typeScriptSample,
			Tags:           []string{"JavaScript", "TypeScript", "type-system"},
			CreatedAt:      now,
			UpdatedAt:      now,
			Status:         models.StatusOutput,
			EaseFactor:     scheduler.DefaultEaseFactor,
			RelatedCardIDs: []string{},
		},
	}
}
