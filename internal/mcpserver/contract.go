package mcpserver

// CardFormatContract tells LLM clients how cards are written.
const CardFormatContract = `# mdmemo Card Format

A card is one term or idea to learn. It has a title, a Markdown body,
tags and a review schedule that the server manages.

## Fields

- **title** (required): the term itself, e.g. ` + "`" + `Goroutines` + "`" + `. The quiz asks
  for this, so keep it short and unambiguous.
- **content**: Markdown explaining the term. Start with a level-one heading
  repeating the title, then a short definition, then details or examples.
- **tags**: short labels for filtering, e.g. ` + "`" + `go` + "`" + `, ` + "`" + `concurrency` + "`" + `.
  Tags are case-sensitive; reuse existing ones (see list_tags).
- **status**: ` + "`" + `memo` + "`" + ` while learning (default), ` + "`" + `output` + "`" + ` once mastered.

Schedule fields (easeFactor, interval, nextReviewDate, reviewCount) are set
by review_card. Do not try to write them.

## Reviews

Grade a recall with review_card:

| grade | meaning |
|---|---|
| 0 | forgot; the card comes back tomorrow |
| 3 | hard |
| 4 | good |
| 5 | easy |

## Links

Relations between cards are stored by id. When importing Markdown files,
` + "`" + `[[Other Title]]` + "`" + ` wikilinks are resolved to ids by title.

## Example

` + "```" + `markdown
# Goroutines

A goroutine is a function running concurrently with others in the same
address space.

` + "```" + `go
go worker(jobs)
` + "```" + `

See also [[Channels]].
` + "```" + `
`
